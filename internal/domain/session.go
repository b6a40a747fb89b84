package domain

type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateRecording SessionState = "recording"
)

type ReleaseMode string

const (
	// ReleaseFinish lets the in-flight turn run to completion before the loop stops.
	ReleaseFinish ReleaseMode = "finish"
	// ReleaseCancel interrupts the in-flight turn as soon as the control is released.
	ReleaseCancel ReleaseMode = "cancel"
)

func (m ReleaseMode) Valid() bool {
	return m == ReleaseFinish || m == ReleaseCancel
}

type GestureType string

const (
	GesturePress   GestureType = "press"
	GestureRelease GestureType = "release"
)
