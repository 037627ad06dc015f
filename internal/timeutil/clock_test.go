package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	assert.GreaterOrEqual(t, clock.Since(past), time.Second)
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, start.Add(1500*time.Millisecond), clock.Now())
	assert.Equal(t, 500*time.Millisecond, clock.Since(start.Add(time.Second)))
}

func TestMockTicker(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(150 * time.Millisecond)

	t.Run("does not fire early", func(t *testing.T) {
		clock.Advance(100 * time.Millisecond)
		select {
		case <-ticker.C():
			t.Fatal("ticker fired before its interval")
		default:
		}
	})

	t.Run("fires when due", func(t *testing.T) {
		clock.Advance(50 * time.Millisecond)
		select {
		case got := <-ticker.C():
			assert.Equal(t, time.Unix(0, 0).Add(150*time.Millisecond), got)
		default:
			t.Fatal("ticker did not fire")
		}
	})

	t.Run("stopped ticker stays silent", func(t *testing.T) {
		ticker.Stop()
		clock.Advance(time.Second)
		select {
		case <-ticker.C():
			t.Fatal("stopped ticker fired")
		default:
		}
		require.Len(t, clock.Tickers(), 1)
		assert.True(t, clock.Tickers()[0].Stopped())
	})
}
