package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sim "github.com/oculab/gazelink/internal/adapters/native/sim"
	registry "github.com/oculab/gazelink/internal/adapters/registry"
	service "github.com/oculab/gazelink/internal/app"
	calibration "github.com/oculab/gazelink/internal/domain/calibration"
	sample "github.com/oculab/gazelink/internal/domain/sample"
)

// newLiveService builds a service over a fast generating fleet.
func newLiveService(t *testing.T, opts ...sim.Option) *service.Service {
	t.Helper()
	fleet := sim.New(append([]sim.Option{sim.WithSampleInterval(time.Millisecond)}, opts...)...)
	return service.New(fleet)
}

// drainUntil polls Consume until at least n samples have accumulated.
func drainUntil(t *testing.T, svc *service.Service, handle string, kind sample.Kind, n int) []sample.Sample {
	t.Helper()
	ctx := context.Background()

	var out []sample.Sample
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d %s samples, got %d", n, kind, len(out))
		}
		batch, err := svc.Consume(ctx, handle, kind)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		out = append(out, batch...)
		time.Sleep(time.Millisecond)
	}
	return out
}

func TestSubscribeConsumeEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(t)

	handle, err := svc.Connect(ctx, devkitAddr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer svc.Close(ctx)

	if err := svc.Subscribe(ctx, handle, sample.Gaze, 64); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	samples := drainUntil(t, svc, handle, sample.Gaze, 10)
	for i, s := range samples {
		if s.Kind() != sample.Gaze {
			t.Fatalf("sample %d: expected gaze, got %v", i, s.Kind())
		}
		if s.SystemTime() == 0 {
			t.Errorf("sample %d: missing host-arrival timestamp", i)
		}
		if i > 0 && s.SystemTime() < samples[i-1].SystemTime() {
			t.Errorf("sample %d: arrival timestamps out of order", i)
		}
	}

	kinds, err := svc.Streams(ctx, handle)
	if err != nil {
		t.Fatalf("streams: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != sample.Gaze {
		t.Errorf("expected [gaze], got %v", kinds)
	}

	if err := svc.Unsubscribe(ctx, handle, sample.Gaze); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if _, err := svc.Consume(ctx, handle, sample.Gaze); !errors.Is(err, registry.ErrNotSubscribed) {
		t.Errorf("expected ErrNotSubscribed after unsubscribe, got %v", err)
	}
}

func TestOccupancyAndOverflow(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(t)

	handle, err := svc.Connect(ctx, devkitAddr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer svc.Close(ctx)

	if err := svc.Subscribe(ctx, handle, sample.ExternalSignal, 4); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Let the tiny buffer wrap a few times.
	deadline := time.Now().Add(2 * time.Second)
	for {
		length, capacity, dropped, err := svc.Occupancy(ctx, handle, sample.ExternalSignal)
		if err != nil {
			t.Fatalf("occupancy: %v", err)
		}
		if capacity != 4 {
			t.Fatalf("expected capacity 4, got %d", capacity)
		}
		if length > capacity {
			t.Fatalf("length %d exceeds capacity %d", length, capacity)
		}
		if dropped > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for buffer overflow")
		}
		time.Sleep(time.Millisecond)
	}

	if err := svc.Clear(ctx, handle, sample.ExternalSignal); err != nil {
		t.Fatalf("clear: %v", err)
	}
}

func TestDisconnectTearsEverythingDown(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(t)

	handle, err := svc.Connect(ctx, devkitAddr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	for _, kind := range []sample.Kind{sample.Gaze, sample.TimeSync} {
		if err := svc.Subscribe(ctx, handle, kind, 0); err != nil {
			t.Fatalf("subscribe %s: %v", kind, err)
		}
	}
	if err := svc.EnterCalibration(ctx, handle); err != nil {
		t.Fatalf("enter calibration: %v", err)
	}

	if err := svc.Disconnect(ctx, handle); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// Every surface of the dead handle now fails uniformly.
	if _, err := svc.Consume(ctx, handle, sample.Gaze); !errors.Is(err, service.ErrInvalidHandle) {
		t.Errorf("consume after disconnect: expected ErrInvalidHandle, got %v", err)
	}
	if _, err := svc.CalibrationState(ctx, handle); !errors.Is(err, service.ErrInvalidHandle) {
		t.Errorf("calibration state after disconnect: expected ErrInvalidHandle, got %v", err)
	}
}

func TestCalibrationThroughService(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(t)

	handle, err := svc.Connect(ctx, devkitAddr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer svc.Close(ctx)

	if err := svc.EnterCalibration(ctx, handle); err != nil {
		t.Fatalf("enter: %v", err)
	}
	points := []sample.Point2{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.5, Y: 0.5}}
	for _, p := range points {
		if err := svc.CollectCalibrationPoint(ctx, handle, p); err != nil {
			t.Fatalf("collect %v: %v", p, err)
		}
	}
	if err := svc.DiscardCalibrationPoint(ctx, handle, points[2]); err != nil {
		t.Fatalf("discard: %v", err)
	}

	result, err := svc.ComputeAndApplyCalibration(ctx, handle)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(result.Points) != 2 {
		t.Errorf("expected 2 calibrated points, got %d", len(result.Points))
	}

	state, err := svc.CalibrationState(ctx, handle)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != calibration.StateApplied {
		t.Errorf("expected applied, got %v", state)
	}

	if err := svc.LeaveCalibration(ctx, handle); err != nil {
		t.Fatalf("leave: %v", err)
	}
}

func TestCloseDisconnectsAllHandles(t *testing.T) {
	ctx := context.Background()
	svc := newLiveService(t)

	h1, err := svc.Connect(ctx, devkitAddr)
	if err != nil {
		t.Fatalf("connect h1: %v", err)
	}
	h2, err := svc.Connect(ctx, devkitAddr)
	if err != nil {
		t.Fatalf("connect h2: %v", err)
	}
	if err := svc.Subscribe(ctx, h1, sample.Gaze, 0); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, h := range []string{h1, h2} {
		if _, err := svc.TrackerInfo(ctx, h); !errors.Is(err, service.ErrInvalidHandle) {
			t.Errorf("handle %s still live after close", h)
		}
	}
}
