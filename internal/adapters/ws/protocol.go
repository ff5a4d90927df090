package ws

import (
	native "github.com/oculab/gazelink/internal/adapters/native"
	sample "github.com/oculab/gazelink/internal/domain/sample"
)

// FrameType identifies a gateway frame.
type FrameType string

// Frame types pushed to clients.
const (
	FrameSamples   FrameType = "samples"
	FrameOccupancy FrameType = "occupancy"
	FrameTrackers  FrameType = "trackers"
	FrameError     FrameType = "error"
)

// Frame is the envelope for every message on the socket.
type Frame struct {
	Type    FrameType   `json:"type"`
	Handle  string      `json:"handle,omitempty"`
	Stream  string      `json:"stream,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// SamplesPayload carries a drained batch in arrival order.
type SamplesPayload struct {
	Count   int             `json:"count"`
	Samples []sample.Sample `json:"samples"`
}

// OccupancyPayload mirrors the registry occupancy counters.
type OccupancyPayload struct {
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
	Dropped  uint64 `json:"dropped"`
}

// TrackersPayload lists the devices visible to the daemon.
type TrackersPayload struct {
	Trackers []native.DeviceInfo `json:"trackers"`
}

// ErrorPayload reports a daemon-side failure to clients.
type ErrorPayload struct {
	Message string `json:"message"`
}
