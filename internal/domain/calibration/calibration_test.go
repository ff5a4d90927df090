package calibration_test

import (
	"context"
	"errors"
	"testing"

	native "github.com/oculab/gazelink/internal/adapters/native"
	sim "github.com/oculab/gazelink/internal/adapters/native/sim"
	calibration "github.com/oculab/gazelink/internal/domain/calibration"
	sample "github.com/oculab/gazelink/internal/domain/sample"
	"github.com/oculab/gazelink/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	p1 = sample.Point2{X: 0.1, Y: 0.1}
	p2 = sample.Point2{X: 0.9, Y: 0.9}
	p3 = sample.Point2{X: 0.5, Y: 0.5}
)

func connectSim(t *testing.T, opts ...sim.Option) native.Device {
	t.Helper()
	fleet := sim.New(append([]sim.Option{sim.WithManualDelivery()}, opts...)...)
	dev, err := fleet.Connect(context.Background(), "sim://devkit-0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return dev
}

func TestCalibrationHappyPath(t *testing.T) {
	convey.Convey("Given an entered calibration session", t, func() {
		ctx := context.Background()
		dev := connectSim(t)
		ctrl := calibration.New()

		convey.So(ctrl.Enter(ctx, "h1", dev), convey.ShouldBeNil)
		convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StateEntered)

		convey.Convey("When collecting two points and computing", func() {
			convey.So(ctrl.CollectAtPoint(ctx, "h1", p1), convey.ShouldBeNil)
			convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StatePointCollected)
			convey.So(ctrl.CollectAtPoint(ctx, "h1", p2), convey.ShouldBeNil)

			result, err := ctrl.ComputeAndApply(ctx, "h1")

			convey.Convey("Then the session reaches Applied with a successful result", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(result.Status, convey.ShouldEqual, native.CalibrationSuccess)
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StateApplied)
			})

			convey.Convey("And leaving returns the handle to Idle with points cleared", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ctrl.Leave(ctx, "h1"), convey.ShouldBeNil)
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StateIdle)
				convey.So(ctrl.Points("h1"), convey.ShouldBeNil)
			})
		})
	})
}

func TestEnterOnActiveSessionFails(t *testing.T) {
	ctx := context.Background()
	dev := connectSim(t)
	ctrl := calibration.New()

	if err := ctrl.Enter(ctx, "h1", dev); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := ctrl.Enter(ctx, "h1", dev); !errors.Is(err, calibration.ErrAlreadyCalibrating) {
		t.Fatalf("expected ErrAlreadyCalibrating, got %v", err)
	}

	// Sessions on other handles are independent.
	other := connectSim(t)
	if err := ctrl.Enter(ctx, "h2", other); err != nil {
		t.Fatalf("enter on second handle: %v", err)
	}
}

func TestCollectionFailureIsRetryable(t *testing.T) {
	convey.Convey("Given a device that cannot collect at one point", t, func() {
		ctx := context.Background()
		dev := connectSim(t, sim.WithCollectFailureAt(p1))
		ctrl := calibration.New()
		convey.So(ctrl.Enter(ctx, "h1", dev), convey.ShouldBeNil)

		convey.Convey("When collection fails", func() {
			err := ctrl.CollectAtPoint(ctx, "h1", p1)

			convey.So(errors.Is(err, calibration.ErrCollectionFailed), convey.ShouldBeTrue)

			convey.Convey("Then the session stays usable", func() {
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StateEntered)
				convey.So(ctrl.CollectAtPoint(ctx, "h1", p2), convey.ShouldBeNil)
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StatePointCollected)
			})

			convey.Convey("And a failure after a successful point rests at PointCollected", func() {
				convey.So(ctrl.CollectAtPoint(ctx, "h1", p2), convey.ShouldBeNil)
				convey.So(errors.Is(ctrl.CollectAtPoint(ctx, "h1", p1), calibration.ErrCollectionFailed), convey.ShouldBeTrue)
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StatePointCollected)
			})
		})
	})
}

func TestComputeFailure(t *testing.T) {
	convey.Convey("Given a session whose compute cannot fit", t, func() {
		ctx := context.Background()
		dev := connectSim(t, sim.WithComputeFailure())
		ctrl := calibration.New()
		convey.So(ctrl.Enter(ctx, "h1", dev), convey.ShouldBeNil)
		convey.So(ctrl.CollectAtPoint(ctx, "h1", p1), convey.ShouldBeNil)
		convey.So(ctrl.CollectAtPoint(ctx, "h1", p2), convey.ShouldBeNil)

		convey.Convey("When computing", func() {
			_, err := ctrl.ComputeAndApply(ctx, "h1")

			convey.So(errors.Is(err, calibration.ErrComputeFailed), convey.ShouldBeTrue)

			convey.Convey("Then the session is Failed but still open", func() {
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StateFailed)
				convey.So(ctrl.Leave(ctx, "h1"), convey.ShouldBeNil)
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StateIdle)
			})
		})
	})
}

func TestFailedFitRecoverableByCollecting(t *testing.T) {
	convey.Convey("Given a fit that needs three points", t, func() {
		ctx := context.Background()
		dev := connectSim(t, sim.WithMinCalibrationPoints(3))
		ctrl := calibration.New()
		convey.So(ctrl.Enter(ctx, "h1", dev), convey.ShouldBeNil)
		convey.So(ctrl.CollectAtPoint(ctx, "h1", p1), convey.ShouldBeNil)
		convey.So(ctrl.CollectAtPoint(ctx, "h1", p2), convey.ShouldBeNil)

		convey.Convey("When computing with too few points", func() {
			_, err := ctrl.ComputeAndApply(ctx, "h1")

			convey.So(errors.Is(err, calibration.ErrComputeFailed), convey.ShouldBeTrue)
			convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StateFailed)

			convey.Convey("Then collecting another point recovers the session", func() {
				convey.So(ctrl.CollectAtPoint(ctx, "h1", p3), convey.ShouldBeNil)
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StatePointCollected)

				result, err := ctrl.ComputeAndApply(ctx, "h1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(result.Status, convey.ShouldEqual, native.CalibrationSuccess)
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StateApplied)
			})

			convey.Convey("And discarding a collected point is also allowed after the failure", func() {
				convey.So(ctrl.DiscardPoint(ctx, "h1", p2), convey.ShouldBeNil)
				convey.So(ctrl.State("h1"), convey.ShouldEqual, calibration.StatePointCollected)
			})
		})
	})
}

func TestSequencingErrors(t *testing.T) {
	convey.Convey("Given a controller", t, func() {
		ctx := context.Background()
		dev := connectSim(t)
		ctrl := calibration.New()

		convey.Convey("When operating without a session", func() {
			convey.So(errors.Is(ctrl.CollectAtPoint(ctx, "h1", p1), calibration.ErrInvalidState), convey.ShouldBeTrue)
			_, err := ctrl.ComputeAndApply(ctx, "h1")
			convey.So(errors.Is(err, calibration.ErrInvalidState), convey.ShouldBeTrue)
			convey.So(errors.Is(ctrl.Leave(ctx, "h1"), calibration.ErrInvalidState), convey.ShouldBeTrue)
		})

		convey.Convey("When computing before any point was collected", func() {
			convey.So(ctrl.Enter(ctx, "h1", dev), convey.ShouldBeNil)
			_, err := ctrl.ComputeAndApply(ctx, "h1")

			convey.So(errors.Is(err, calibration.ErrInvalidState), convey.ShouldBeTrue)
		})

		convey.Convey("When discarding a point that was never collected", func() {
			convey.So(ctrl.Enter(ctx, "h1", dev), convey.ShouldBeNil)
			err := ctrl.DiscardPoint(ctx, "h1", p3)

			convey.So(errors.Is(err, calibration.ErrUnknownPoint), convey.ShouldBeTrue)
		})
	})
}

func TestDiscardPoint(t *testing.T) {
	ctx := context.Background()
	dev := connectSim(t)
	ctrl := calibration.New()

	if err := ctrl.Enter(ctx, "h1", dev); err != nil {
		t.Fatalf("enter: %v", err)
	}
	for _, p := range []sample.Point2{p1, p2} {
		if err := ctrl.CollectAtPoint(ctx, "h1", p); err != nil {
			t.Fatalf("collect: %v", err)
		}
	}

	if err := ctrl.DiscardPoint(ctx, "h1", p2); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if st := ctrl.State("h1"); st != calibration.StatePointCollected {
		t.Errorf("expected pointCollected with one point left, got %v", st)
	}

	if err := ctrl.DiscardPoint(ctx, "h1", p1); err != nil {
		t.Fatalf("discard last point: %v", err)
	}
	if st := ctrl.State("h1"); st != calibration.StateEntered {
		t.Errorf("expected entered after discarding all points, got %v", st)
	}

	collected := 0
	for _, rec := range ctrl.Points("h1") {
		if rec.Status == calibration.PointCollected {
			collected++
		}
	}
	if collected != 0 {
		t.Errorf("expected no collected points, got %d", collected)
	}
}

func TestLeaveFromEveryNonIdleState(t *testing.T) {
	ctx := context.Background()

	// Entered, PointCollected, Applied and Failed must all leave
	// cleanly back to Idle.
	setups := map[string]func(t *testing.T, ctrl *calibration.Controller, dev native.Device){
		"entered": func(t *testing.T, ctrl *calibration.Controller, dev native.Device) {},
		"pointCollected": func(t *testing.T, ctrl *calibration.Controller, dev native.Device) {
			if err := ctrl.CollectAtPoint(ctx, "h1", p1); err != nil {
				t.Fatalf("collect: %v", err)
			}
		},
		"applied": func(t *testing.T, ctrl *calibration.Controller, dev native.Device) {
			for _, p := range []sample.Point2{p1, p2} {
				if err := ctrl.CollectAtPoint(ctx, "h1", p); err != nil {
					t.Fatalf("collect: %v", err)
				}
			}
			if _, err := ctrl.ComputeAndApply(ctx, "h1"); err != nil {
				t.Fatalf("compute: %v", err)
			}
		},
		"failed": func(t *testing.T, ctrl *calibration.Controller, dev native.Device) {
			if err := ctrl.CollectAtPoint(ctx, "h1", p1); err != nil {
				t.Fatalf("collect: %v", err)
			}
			if _, err := ctrl.ComputeAndApply(ctx, "h1"); err == nil {
				t.Fatal("expected compute to fail with a single point")
			}
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			dev := connectSim(t)
			ctrl := calibration.New()
			if err := ctrl.Enter(ctx, "h1", dev); err != nil {
				t.Fatalf("enter: %v", err)
			}
			setup(t, ctrl, dev)

			if err := ctrl.Leave(ctx, "h1"); err != nil {
				t.Fatalf("leave from %s: %v", name, err)
			}
			if st := ctrl.State("h1"); st != calibration.StateIdle {
				t.Errorf("expected idle after leave, got %v", st)
			}
			if pts := ctrl.Points("h1"); pts != nil {
				t.Errorf("expected cleared point set, got %v", pts)
			}

			// The handle is immediately reusable.
			if err := ctrl.Enter(ctx, "h1", dev); err != nil {
				t.Errorf("re-enter after leave: %v", err)
			}
		})
	}
}
