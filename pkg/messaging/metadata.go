package messaging

import (
	"fmt"
	"strconv"
	"time"
)

// subscription metadata keys, shared by all transports
const (
	DurableSubscriptionNameKey = "durableSubscriptionName"
	StartAtSequenceKey         = "startAtSequence"
	StartWithLastReceivedKey   = "startWithLastReceived"
	DeliverAllKey              = "deliverAll"
	DeliverNewKey              = "deliverNew"
	StartAtTimeDeltaKey        = "startAtTimeDelta"
	StartAtTimeKey             = "startAtTime"
	StartAtTimeFormatKey       = "startAtTimeFormat"
	AckWaitTimeKey             = "ackWaitTime"
	MaxInFlightKey             = "maxInFlight"
	ManualAckKey               = "manualAck"
	LeaveOpenKey               = "leaveOpen"
)

const trueValue = "true"

// SubscriptionOptionsFromMetadata builds options from component metadata,
// starting from DefaultSubscriptionOptions. Only one start option is honoured,
// in key order: startAtSequence, startWithLastReceived, deliverAll,
// deliverNew, startAtTimeDelta, startAtTime.
func SubscriptionOptionsFromMetadata(properties map[string]string) (SubscriptionOptions, error) {
	o := DefaultSubscriptionOptions()

	if val, ok := properties[DurableSubscriptionNameKey]; ok && val != "" {
		if err := o.SetDurableName(val); err != nil {
			return o, err
		}
	}

	if val, ok := properties[AckWaitTimeKey]; ok && val != "" {
		dur, err := time.ParseDuration(val)
		if err != nil {
			return o, fmt.Errorf("%w: %s %s", ErrInvalidOption, AckWaitTimeKey, err)
		}
		if err = o.SetAckWait(dur); err != nil {
			return o, err
		}
	}

	if val, ok := properties[MaxInFlightKey]; ok && val != "" {
		max, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return o, fmt.Errorf("%w: %s %s", ErrInvalidOption, MaxInFlightKey, err)
		}
		if err = o.SetMaxInFlight(int(max)); err != nil {
			return o, err
		}
	}

	for key, set := range map[string]func(bool){
		ManualAckKey: o.SetManualAckMode,
		LeaveOpenKey: o.SetLeaveOpen,
	} {
		if val, ok := properties[key]; ok && val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return o, fmt.Errorf("%w: %s %s", ErrInvalidOption, key, err)
			}
			set(b)
		}
	}

	//nolint:nestif
	if val, ok := properties[StartAtSequenceKey]; ok && val != "" {
		seq, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return o, fmt.Errorf("%w: %s %s", ErrInvalidOption, StartAtSequenceKey, err)
		}
		if seq < 1 {
			return o, &RangeError{Field: StartAtSequenceKey, Value: seq, Bound: 1}
		}
		o.StartAtSequence(seq)
	} else if val, ok := properties[StartWithLastReceivedKey]; ok {
		if val != trueValue {
			return o, invalidOption(StartWithLastReceivedKey, "only accepts true")
		}
		o.StartWithLastReceived()
	} else if val, ok := properties[DeliverAllKey]; ok {
		if val != trueValue {
			return o, invalidOption(DeliverAllKey, "only accepts true")
		}
		o.DeliverAllAvailable()
	} else if val, ok := properties[DeliverNewKey]; ok {
		if val != trueValue {
			return o, invalidOption(DeliverNewKey, "only accepts true")
		}
		o.DeliverNewOnly()
	} else if val, ok := properties[StartAtTimeDeltaKey]; ok && val != "" {
		dur, err := time.ParseDuration(val)
		if err != nil {
			return o, fmt.Errorf("%w: %s %s", ErrInvalidOption, StartAtTimeDeltaKey, err)
		}
		o.StartAtTimeDelta(dur)
	} else if val, ok := properties[StartAtTimeKey]; ok && val != "" {
		format := properties[StartAtTimeFormatKey]
		if format == "" {
			return o, invalidOption(StartAtTimeFormatKey, "is required with startAtTime")
		}
		t, err := time.Parse(format, val)
		if err != nil {
			return o, fmt.Errorf("%w: %s %s", ErrInvalidOption, StartAtTimeKey, err)
		}
		o.StartAtTime(t)
	}

	return o, nil
}
