package scan

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestPending(t *testing.T) {
	p := NewPending()
	ev := func(id string, at time.Duration) Event {
		return Event{Identity: id, Entry: entries[id], Timestamp: t0.Add(at)}
	}

	p.Add(ev("b", 0))
	p.Add(ev("a", time.Second))
	p.Add(ev("b", 2*time.Second))

	want := []Item{
		{Identity: "b", Entry: entries["b"], Quantity: 2, FirstSeen: t0, LastSeen: t0.Add(2 * time.Second)},
		{Identity: "a", Entry: entries["a"], Quantity: 1, FirstSeen: t0.Add(time.Second), LastSeen: t0.Add(time.Second)},
	}
	if diff := cmp.Diff(want, p.Items()); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, p.Total())

	t.Run("increment and decrement", func(t *testing.T) {
		assert.True(t, p.Increment("a"))
		assert.False(t, p.Increment("zzz"))
		assert.Equal(t, 4, p.Total())

		assert.True(t, p.Decrement("a"))
		assert.True(t, p.Decrement("a"))
		assert.False(t, p.Decrement("a"), "dropped at zero")
		assert.Len(t, p.Items(), 1)
	})

	t.Run("remove and clear", func(t *testing.T) {
		p.Add(ev("a", 3*time.Second))
		p.Remove("b")
		items := p.Items()
		assert.Len(t, items, 1)
		assert.Equal(t, "a", items[0].Identity)

		p.Remove("missing")
		p.Clear()
		assert.Empty(t, p.Items())
		assert.Equal(t, 0, p.Total())
	})
}
