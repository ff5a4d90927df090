package console

import (
	"fmt"
	"sort"

	"github.com/fatih/color"

	ws "github.com/oculab/gazelink/internal/adapters/ws"
)

// Frame type colors.
var (
	sampleColor    = color.New(color.FgCyan)
	occupancyColor = color.New(color.Faint)
	trackerColor   = color.New(color.FgGreen)
	errorColor     = color.New(color.FgRed, color.Bold)
)

// renderFrame prints one frame. Sample frames are only shown in
// verbose mode; they arrive too fast to be readable otherwise.
func renderFrame(config *Config, frame *ws.Frame, raw []byte) {
	switch frame.Type {
	case ws.FrameSamples:
		if !config.Verbose {
			return
		}
		var payload ws.SamplesPayload
		if err := decodePayload(raw, &payload); err != nil {
			return
		}
		fmt.Printf("%s %s %s\n",
			sampleColor.Sprintf("[%s]", frame.Stream),
			frame.Handle,
			fmt.Sprintf("%d samples", payload.Count))

	case ws.FrameOccupancy:
		var payload ws.OccupancyPayload
		if err := decodePayload(raw, &payload); err != nil {
			return
		}
		line := occupancyColor.Sprintf("[%s] %d/%d buffered", frame.Stream, payload.Length, payload.Capacity)
		if payload.Dropped > 0 {
			line += " " + errorColor.Sprintf("(%d dropped)", payload.Dropped)
		}
		fmt.Println(line)

	case ws.FrameTrackers:
		var payload ws.TrackersPayload
		if err := decodePayload(raw, &payload); err != nil {
			return
		}
		for _, info := range payload.Trackers {
			fmt.Printf("%s %s (%s, fw %s)\n",
				trackerColor.Sprint(info.Address),
				info.Model, info.SerialNumber, info.FirmwareVersion)
		}

	case ws.FrameError:
		var payload ws.ErrorPayload
		if err := decodePayload(raw, &payload); err != nil {
			return
		}
		fmt.Printf("%s %s\n", errorColor.Sprint("error:"), payload.Message)
	}
}

// renderSummary prints the end-of-session table.
func renderSummary(stats *Stats) {
	fmt.Println()
	fmt.Println(color.New(color.Bold).Sprint("Session summary"))
	fmt.Printf("  frames received: %d\n", stats.FramesReceived)

	streams := make([]string, 0, len(stats.SamplesReceived))
	for stream := range stats.SamplesReceived {
		streams = append(streams, stream)
	}
	sort.Strings(streams)
	for _, stream := range streams {
		fmt.Printf("  %s: %s\n",
			sampleColor.Sprint(stream),
			fmt.Sprintf("%d samples", stats.SamplesReceived[stream]))
	}

	if stats.DroppedReported > 0 {
		fmt.Printf("  %s\n", errorColor.Sprintf("dropped: %d", stats.DroppedReported))
	}
	if stats.ErrorsReported > 0 {
		fmt.Printf("  %s\n", errorColor.Sprintf("errors: %d", stats.ErrorsReported))
	}
	fmt.Printf("  duration: %s\n", stats.Duration)
}
