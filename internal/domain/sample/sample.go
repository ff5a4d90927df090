// Package sample contains the data records delivered by the tracker for
// each stream kind. Records are plain values passed between layers; once
// constructed they are never mutated.
package sample

import "fmt"

// Kind identifies a category of tracker telemetry.
type Kind int

// Stream kinds supported by the tracker boundary.
const (
	Gaze Kind = iota
	EyeOpenness
	ExternalSignal
	TimeSync
	UserPosition
	Notification
	EyeImage
)

// kindNames maps kinds to their wire identifiers. These match the stream
// identifier strings the vendor SDK uses.
var kindNames = map[Kind]string{
	Gaze:           "gaze",
	EyeOpenness:    "eyeOpenness",
	ExternalSignal: "externalSignal",
	TimeSync:       "timeSync",
	UserPosition:   "positioning",
	Notification:   "notification",
	EyeImage:       "eyeImage",
}

// Kinds returns all stream kinds in declaration order.
func Kinds() []Kind {
	return []Kind{Gaze, EyeOpenness, ExternalSignal, TimeSync, UserPosition, Notification, EyeImage}
}

// String returns the wire identifier for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// ParseKind resolves a wire identifier to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Sample is implemented by every stream record. DeviceTime is the
// tracker's clock at acquisition, SystemTime the host clock at arrival;
// both are microseconds.
type Sample interface {
	Kind() Kind
	DeviceTime() int64
	SystemTime() int64
}

// Timestamps is embedded by every sample variant.
type Timestamps struct {
	DeviceTimeUS int64
	SystemTimeUS int64
}

func (t Timestamps) DeviceTime() int64 { return t.DeviceTimeUS }
func (t Timestamps) SystemTime() int64 { return t.SystemTimeUS }

// Validity marks whether the tracker considers a measured field usable.
type Validity bool

// Validity states reported per measured field.
const (
	Invalid Validity = false
	Valid   Validity = true
)

// Point2 is a normalized 2D point ([0,1] on the active display area).
type Point2 struct {
	X float64
	Y float64
}

// Point3 is a 3D position in millimeters in the user coordinate system.
type Point3 struct {
	X float64
	Y float64
	Z float64
}

// EyeData is the per-eye portion of a gaze sample.
type EyeData struct {
	GazePointOnDisplay Point2
	GazePointValid     Validity
	GazeOrigin         Point3
	GazeOriginValid    Validity
	PupilDiameterMM    float64
	PupilValid         Validity
}

// GazeData is one binocular gaze sample.
type GazeData struct {
	Timestamps
	Left  EyeData
	Right EyeData
}

func (GazeData) Kind() Kind { return Gaze }

// EyeOpennessData carries the per-eye openness distance in millimeters.
type EyeOpennessData struct {
	Timestamps
	LeftMM     float64
	LeftValid  Validity
	RightMM    float64
	RightValid Validity
}

func (EyeOpennessData) Kind() Kind { return EyeOpenness }

// SignalChange describes why an external signal sample was emitted.
type SignalChange int

// External signal change types.
const (
	SignalValueChanged SignalChange = iota
	SignalInitialValue
	SignalConnectionRestored
)

// ExternalSignalData is one TTL input port sample.
type ExternalSignalData struct {
	Timestamps
	Value  uint32
	Change SignalChange
}

func (ExternalSignalData) Kind() Kind { return ExternalSignal }

// TimeSyncData is one clock synchronization packet. All three stamps are
// microseconds; request and response are on the host clock, device on
// the tracker clock.
type TimeSyncData struct {
	Timestamps
	SystemRequestTimeUS  int64
	DeviceTimeUS2        int64
	SystemResponseTimeUS int64
}

func (TimeSyncData) Kind() Kind { return TimeSync }

// UserPositionData reports eye positions normalized to the track box.
type UserPositionData struct {
	Timestamps
	Left       Point3
	LeftValid  Validity
	Right      Point3
	RightValid Validity
}

func (UserPositionData) Kind() Kind { return UserPosition }

// NotificationCode identifies a device notification.
type NotificationCode int

// Device notification codes surfaced by the boundary.
const (
	NotifyConnectionLost NotificationCode = iota
	NotifyConnectionRestored
	NotifyCalibrationModeEntered
	NotifyCalibrationModeLeft
	NotifyCalibrationChanged
	NotifyTrackBoxChanged
	NotifyDisplayAreaChanged
	NotifyGazeOutputFrequencyChanged
	NotifyDeviceFault
	NotifyDeviceWarning
)

// NotificationData is one device notification with optional parameters.
type NotificationData struct {
	Timestamps
	Code NotificationCode
	// OutputFrequencyHz is set for NotifyGazeOutputFrequencyChanged.
	OutputFrequencyHz float64
	// Errors and warnings pass the device's diagnostic text through.
	Diagnostic string
}

func (NotificationData) Kind() Kind { return Notification }

// ImageType distinguishes full-frame from cropped eye images.
type ImageType int

// Eye image framing types.
const (
	ImageFull ImageType = iota
	ImageCropped
)

// EyeImageData is one raw eye camera frame.
type EyeImageData struct {
	Timestamps
	CameraID     int
	Type         ImageType
	Width        int
	Height       int
	BitsPerPixel int
	Pixels       []byte
}

func (EyeImageData) Kind() Kind { return EyeImage }
