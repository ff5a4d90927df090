// Package console implements the tracker-console observer: it attaches
// to a running daemon, follows the telemetry pushed on /ws and renders
// a per-stream summary.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/oculab/gazelink/internal/adapters/ws"
	"github.com/oculab/gazelink/pkg/logger"
)

// Stats accumulates what the session observed.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	FramesReceived  int
	SamplesReceived map[string]int
	DroppedReported uint64
	ErrorsReported  int
}

// Run executes a complete observer session.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime:       time.Now(),
		SamplesReceived: make(map[string]int),
	}

	logger.Get().Info(ctx, "starting tracker console",
		logger.String("baseURL", config.BaseURL),
		logger.String("duration", config.Duration.String()),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check daemon health
	if err := checkDaemonHealth(ctx, config); err != nil {
		return nil, fmt.Errorf("daemon health check failed: %w", err)
	}

	// Step 2: Attach to the telemetry socket
	conn, err := dialTelemetry(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("telemetry attach failed: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close websocket", logger.Error(err))
		}
	}()

	// Step 3: Follow frames until the session ends
	if err := followFrames(ctx, config, conn, stats); err != nil {
		return nil, fmt.Errorf("frame loop failed: %w", err)
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displaySessionStats(stats)

	logger.Get().Info(ctx, "console session completed")
	return stats, nil
}

// checkDaemonHealth verifies the daemon is running.
func checkDaemonHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking daemon health")

	client := &http.Client{Timeout: config.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "daemon is healthy")
	return nil
}

// dialTelemetry opens the websocket connection to the daemon.
func dialTelemetry(ctx context.Context, config *Config) (*websocket.Conn, error) {
	url := wsURL(config.BaseURL) + "/ws"

	dialer := websocket.Dialer{HandshakeTimeout: config.Timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// wsURL rewrites an http(s) base URL to its ws(s) form.
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// followFrames consumes frames until the duration elapses, the context
// ends or the daemon closes the socket.
func followFrames(ctx context.Context, config *Config, conn *websocket.Conn, stats *Stats) error {
	deadline := time.Time{}
	if config.Duration > 0 {
		deadline = time.Now().Add(config.Duration)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		readDeadline := time.Now().Add(time.Second)
		if !deadline.IsZero() && deadline.Before(readDeadline) {
			readDeadline = deadline
		}
		_ = conn.SetReadDeadline(readDeadline)

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !deadline.IsZero() && time.Now().After(deadline) {
				return nil
			}
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		var frame ws.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Get().Warn(ctx, "undecodable frame", logger.Error(err))
			continue
		}

		recordFrame(config, stats, &frame, data)

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil
		}
	}
}

// recordFrame updates session counters and renders the frame.
func recordFrame(config *Config, stats *Stats, frame *ws.Frame, raw []byte) {
	stats.FramesReceived++

	switch frame.Type {
	case ws.FrameSamples:
		var payload ws.SamplesPayload
		if err := decodePayload(raw, &payload); err == nil {
			stats.SamplesReceived[frame.Stream] += payload.Count
		}
	case ws.FrameOccupancy:
		var payload ws.OccupancyPayload
		if err := decodePayload(raw, &payload); err == nil {
			stats.DroppedReported = payload.Dropped
		}
	case ws.FrameError:
		stats.ErrorsReported++
	}

	renderFrame(config, frame, raw)
}

// decodePayload re-decodes the frame with a concrete payload type.
func decodePayload(raw []byte, payload interface{}) error {
	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Payload, payload)
}

// displaySessionStats prints the final session statistics.
func displaySessionStats(stats *Stats) {
	fields := []logger.Field{
		logger.Int("framesReceived", stats.FramesReceived),
		logger.Any("droppedReported", stats.DroppedReported),
		logger.Int("errorsReported", stats.ErrorsReported),
		logger.String("duration", stats.Duration.String()),
	}
	for stream, n := range stats.SamplesReceived {
		fields = append(fields, logger.Int("samples."+stream, n))
	}

	logger.Get().Info(context.Background(), "session statistics", fields...)
	renderSummary(stats)
}
