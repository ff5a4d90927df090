package sample_test

import (
	"testing"

	sample "github.com/oculab/gazelink/internal/domain/sample"
	"github.com/smartystreets/goconvey/convey"
)

func TestKindRoundTrip(t *testing.T) {
	convey.Convey("Given the set of stream kinds", t, func() {
		convey.Convey("When converting each kind to its wire identifier and back", func() {
			for _, k := range sample.Kinds() {
				parsed, err := sample.ParseKind(k.String())

				convey.So(err, convey.ShouldBeNil)
				convey.So(parsed, convey.ShouldEqual, k)
			}
		})

		convey.Convey("When parsing an unknown identifier", func() {
			_, err := sample.ParseKind("eyebrow")

			convey.Convey("Then it should return ErrUnknownKind", func() {
				convey.So(err, convey.ShouldWrap, sample.ErrUnknownKind)
			})
		})

		convey.Convey("When listing all kinds", func() {
			kinds := sample.Kinds()

			convey.Convey("Then the closed set should have seven members", func() {
				convey.So(len(kinds), convey.ShouldEqual, 7)
			})
		})
	})
}

func TestSampleTimestamps(t *testing.T) {
	convey.Convey("Given a gaze sample with timestamps", t, func() {
		g := sample.GazeData{
			Timestamps: sample.Timestamps{DeviceTimeUS: 1000, SystemTimeUS: 2000},
			Left: sample.EyeData{
				GazePointOnDisplay: sample.Point2{X: 0.5, Y: 0.5},
				GazePointValid:     sample.Valid,
				PupilDiameterMM:    3.2,
				PupilValid:         sample.Valid,
			},
		}

		convey.Convey("Then it should expose both clocks through the Sample interface", func() {
			var s sample.Sample = g
			convey.So(s.Kind(), convey.ShouldEqual, sample.Gaze)
			convey.So(s.DeviceTime(), convey.ShouldEqual, 1000)
			convey.So(s.SystemTime(), convey.ShouldEqual, 2000)
		})
	})

	convey.Convey("Given one sample of every kind", t, func() {
		samples := []sample.Sample{
			sample.GazeData{},
			sample.EyeOpennessData{},
			sample.ExternalSignalData{},
			sample.TimeSyncData{},
			sample.UserPositionData{},
			sample.NotificationData{},
			sample.EyeImageData{},
		}

		convey.Convey("Then each should report its own kind", func() {
			for i, s := range samples {
				convey.So(s.Kind(), convey.ShouldEqual, sample.Kinds()[i])
			}
		})
	})
}
