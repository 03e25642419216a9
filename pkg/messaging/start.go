package messaging

import (
	"fmt"
	"time"
)

// StartMode is the broker-side policy selecting the first message delivered
// to a new subscription.
type StartMode int

const (
	NewOnly StartMode = iota
	LastReceived
	TimeDeltaStart
	SequenceStart
	First
)

func (m StartMode) String() string {
	switch m {
	case NewOnly:
		return "NewOnly"
	case LastReceived:
		return "LastReceived"
	case TimeDeltaStart:
		return "TimeDeltaStart"
	case SequenceStart:
		return "SequenceStart"
	case First:
		return "First"
	}
	return fmt.Sprintf("StartMode(%d)", int(m))
}

// StartPosition is one of NewOnlyStart, LastReceivedStart, FirstStart,
// AtSequence, AtTime or AtTimeDelta. Only the variant carries its parameter,
// so selecting a new position always discards the previous one.
type StartPosition interface {
	Mode() StartMode
	isStartPosition()
}

type (
	NewOnlyStart      struct{}
	LastReceivedStart struct{}
	FirstStart        struct{}

	AtSequence struct {
		Sequence uint64
	}

	// AtTime starts at an absolute instant, always held in UTC.
	AtTime struct {
		Time time.Time
	}

	// AtTimeDelta starts at now minus Delta, resolved by the broker.
	AtTimeDelta struct {
		Delta time.Duration
	}
)

func (NewOnlyStart) Mode() StartMode      { return NewOnly }
func (LastReceivedStart) Mode() StartMode { return LastReceived }
func (FirstStart) Mode() StartMode        { return First }
func (AtSequence) Mode() StartMode        { return SequenceStart }
func (AtTime) Mode() StartMode            { return TimeDeltaStart }
func (AtTimeDelta) Mode() StartMode       { return TimeDeltaStart }

func (NewOnlyStart) isStartPosition()      {}
func (LastReceivedStart) isStartPosition() {}
func (FirstStart) isStartPosition()        {}
func (AtSequence) isStartPosition()        {}
func (AtTime) isStartPosition()            {}
func (AtTimeDelta) isStartPosition()       {}

// StartTime resolves a time based position to the instant the broker should
// start from. ok is false for positions that are not time based.
func StartTime(p StartPosition, now time.Time) (t time.Time, ok bool) {
	switch v := p.(type) {
	case AtTime:
		return v.Time, true
	case AtTimeDelta:
		return now.Add(-v.Delta).UTC(), true
	}
	return time.Time{}, false
}
