package config_test

import (
	"testing"

	"github.com/oculab/gazelink/internal/config"
	sample "github.com/oculab/gazelink/internal/domain/sample"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Addr, convey.ShouldEqual, ":9450")
			convey.So(cfg.Streams, convey.ShouldResemble, []string{"gaze"})
			convey.So(cfg.BufferCapacity, convey.ShouldEqual, 4096)
			convey.So(cfg.DrainIntervalMS, convey.ShouldEqual, 50)
			convey.So(cfg.WSSendBuffer, convey.ShouldEqual, 64)
		})

		convey.Convey("Then the default streams resolve to kinds", func() {
			convey.So(cfg.StreamKinds(), convey.ShouldResemble, []sample.Kind{sample.Gaze})
		})
	})
}
