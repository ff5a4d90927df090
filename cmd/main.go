package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	native "github.com/oculab/gazelink/internal/adapters/native"
	sim "github.com/oculab/gazelink/internal/adapters/native/sim"
	ws "github.com/oculab/gazelink/internal/adapters/ws"
	service "github.com/oculab/gazelink/internal/app"
	"github.com/oculab/gazelink/internal/config"
	sample "github.com/oculab/gazelink/internal/domain/sample"
	"github.com/oculab/gazelink/pkg/logger"
	"github.com/oculab/gazelink/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// The simulated fleet stands in for the vendor runtime; the cgo
	// boundary drops in here without touching anything below.
	boundary := sim.New()

	svc := service.New(boundary,
		service.WithLogger(log),
		service.WithDefaultBufferCapacity(cfg.BufferCapacity),
	)
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			log.Error(ctx, "service close", logger.Error(err))
		}
	}()

	handle, err := connectTracker(ctx, svc, cfg)
	if err != nil {
		log.Error(ctx, "tracker connect", logger.Error(err))
		return
	}

	kinds := cfg.StreamKinds()
	for _, kind := range kinds {
		if err := svc.Subscribe(ctx, handle, kind, cfg.BufferCapacity); err != nil {
			log.Error(ctx, "stream subscribe", logger.String("stream", kind.String()), logger.Error(err))
			return
		}
	}

	gateway := ws.New(
		ws.WithSendBuffer(cfg.WSSendBuffer),
		ws.WithLogger(logger.Named("ws")),
		ws.WithSnapshot(func() []ws.Frame {
			var infos []native.DeviceInfo
			for info, err := range svc.ListTrackers(ctx) {
				if err != nil {
					return nil
				}
				infos = append(infos, info)
			}
			return []ws.Frame{{Type: ws.FrameTrackers, Payload: ws.TrackersPayload{Trackers: infos}}}
		}),
	)
	defer gateway.Close()

	// Background pumps.
	go runDrainPump(ctx, svc, gateway, handle, kinds, time.Duration(cfg.DrainIntervalMS)*time.Millisecond)
	go runOccupancyPump(ctx, svc, gateway, handle, kinds, time.Duration(cfg.OccupancyIntervalMS)*time.Millisecond)
	go runSystemMetrics(ctx, time.Duration(cfg.SystemMetricsIntervalMS)*time.Millisecond)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", gateway.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutMS)*time.Millisecond)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "stopped")
}

// connectTracker resolves the configured device and opens a handle.
// Without an explicit address the first enumerated tracker wins.
func connectTracker(ctx context.Context, svc *service.Service, cfg *config.Config) (string, error) {
	address := cfg.TrackerAddress
	if address == "" {
		for info, err := range svc.ListTrackers(ctx) {
			if err != nil {
				return "", err
			}
			address = info.Address
			break
		}
		if address == "" {
			return "", native.ErrDeviceNotFound
		}
	}
	return svc.Connect(ctx, address)
}

// runDrainPump periodically drains each subscribed stream and pushes
// the batches to websocket observers.
func runDrainPump(ctx context.Context, svc *service.Service, gateway *ws.Gateway, handle string, kinds []sample.Kind, interval time.Duration) {
	log := logger.Named("pump")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, kind := range kinds {
				batch, err := svc.Consume(ctx, handle, kind)
				if err != nil {
					log.Warn(ctx, "drain", logger.String("stream", kind.String()), logger.Error(err))
					continue
				}
				gateway.BroadcastSamples(handle, kind, batch)
			}
		}
	}
}

// runOccupancyPump periodically pushes buffer counters.
func runOccupancyPump(ctx context.Context, svc *service.Service, gateway *ws.Gateway, handle string, kinds []sample.Kind, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, kind := range kinds {
				length, capacity, dropped, err := svc.Occupancy(ctx, handle, kind)
				if err != nil {
					continue
				}
				gateway.BroadcastOccupancy(handle, kind, length, capacity, dropped)
			}
		}
	}
}

// runSystemMetrics samples host memory, CPU and goroutine gauges.
func runSystemMetrics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if vm, err := mem.VirtualMemory(); err == nil {
				metrics.UpdateSystemMemory(vm.Used)
			}
			if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
				metrics.UpdateSystemCPU(percents[0])
			}
			metrics.UpdateSystemGoroutines(runtime.NumGoroutine())
		}
	}
}
