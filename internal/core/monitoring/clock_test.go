package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClockAfterFunc(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	fired := 0
	clock.AfterFunc(5*time.Minute, func() { fired++ })

	clock.Advance(4 * time.Minute)
	assert.Equal(t, 0, fired, "timer must not fire before its deadline")

	clock.Advance(time.Minute)
	assert.Equal(t, 1, fired)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, fired, "one-shot timer fires exactly once")
}

func TestManualClockTimerOrder(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	var order []string
	clock.AfterFunc(10*time.Minute, func() { order = append(order, "late") })
	clock.AfterFunc(2*time.Minute, func() { order = append(order, "early") })
	clock.AfterFunc(5*time.Minute, func() { order = append(order, "middle") })

	clock.Advance(15 * time.Minute)
	assert.Equal(t, []string{"early", "middle", "late"}, order)
}

func TestManualClockTimerSeesOwnDeadline(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := NewManualClock(start)

	var observed time.Time
	clock.AfterFunc(3*time.Minute, func() { observed = clock.Now() })

	clock.Advance(10 * time.Minute)
	assert.Equal(t, start.Add(3*time.Minute), observed,
		"callback must observe the timer's deadline, not the advance target")
	assert.Equal(t, start.Add(10*time.Minute), clock.Now())
}

func TestManualClockStop(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	fired := false
	handle := clock.AfterFunc(time.Minute, func() { fired = true })

	assert.True(t, handle.Stop())
	assert.False(t, handle.Stop(), "second stop reports nothing prevented")

	clock.Advance(time.Hour)
	assert.False(t, fired)
}

func TestManualClockTimerChaining(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	fired := 0
	clock.AfterFunc(time.Minute, func() {
		fired++
		clock.AfterFunc(time.Minute, func() { fired++ })
	})

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, fired, "a callback may arm a follow-up timer within the same advance")
}

func TestManualClockTicker(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Minute)
	defer ticker.Stop()

	clock.Advance(3*time.Minute + 30*time.Second)

	ticks := 0
	for {
		select {
		case <-ticker.C():
			ticks++
			continue
		default:
		}
		break
	}
	require.Equal(t, 3, ticks)

	ticker.Stop()
	clock.Advance(10 * time.Minute)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker must not deliver")
	default:
	}
}
