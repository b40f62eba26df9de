package binance

import (
	"errors"
	"time"
)

// Clock supplies request timestamps in Unix milliseconds.
type Clock interface {
	NowMillis() (int64, error)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() (int64, error)

func (f ClockFunc) NowMillis() (int64, error) {
	return f()
}

var errClockBeforeEpoch = errors.New("system clock reports a time before the unix epoch")

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) NowMillis() (int64, error) {
	ms := time.Now().UnixMilli()
	if ms <= 0 {
		return 0, errClockBeforeEpoch
	}
	return ms, nil
}

// OffsetClock shifts another clock by a fixed offset, typically the
// difference between venue time (see Swap.ServerTime) and local time.
type OffsetClock struct {
	Base   Clock
	Offset time.Duration
}

func (c OffsetClock) NowMillis() (int64, error) {
	ms, err := c.Base.NowMillis()
	if err != nil {
		return 0, err
	}
	return ms + c.Offset.Milliseconds(), nil
}
