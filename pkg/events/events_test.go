package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/logger"
)

func TestEmitter(t *testing.T) {
	t.Run("listeners run in registration order", func(t *testing.T) {
		e := NewEmitter[string, int](logger.GetLogger())
		var calls []string
		e.On("a", func(int) { calls = append(calls, "first") })
		e.On("a", func(int) { calls = append(calls, "second") })
		e.On("b", func(int) { calls = append(calls, "other") })

		e.Emit("a", 1)
		require.Equal(t, []string{"first", "second"}, calls)
	})

	t.Run("closing subscription removes only that listener", func(t *testing.T) {
		e := NewEmitter[string, int](nil)
		count := 0
		sub := e.On("a", func(int) { count += 10 })
		e.On("a", func(int) { count++ })
		require.Equal(t, 2, e.ListenerCount("a"))

		sub.Close()
		sub.Close()
		require.Equal(t, 1, e.ListenerCount("a"))

		e.Emit("a", 0)
		require.Equal(t, 1, count)
	})

	t.Run("panicking listener does not stop later listeners", func(t *testing.T) {
		e := NewEmitter[string, int](nil)
		called := false
		e.On("a", func(int) { panic("boom") })
		e.On("a", func(int) { called = true })

		require.NotPanics(t, func() { e.Emit("a", 0) })
		require.True(t, called)
	})

	t.Run("listener removed during emit still sees the current turn", func(t *testing.T) {
		e := NewEmitter[string, int](nil)
		var second Subscription
		secondCalls := 0
		e.On("a", func(int) { second.Close() })
		second = e.On("a", func(int) { secondCalls++ })

		e.Emit("a", 0)
		require.Equal(t, 1, secondCalls)
		e.Emit("a", 0)
		require.Equal(t, 1, secondCalls)
		require.Equal(t, 1, e.TotalListeners())
	})
}

func TestGroup(t *testing.T) {
	var order []int
	g := &Group{}
	g.Add(NewSubscription(func() { order = append(order, 1) }))
	g.Add(NewSubscription(func() { order = append(order, 2) }))
	require.Equal(t, 2, g.Len())

	require.True(t, g.Close())
	require.False(t, g.Close())
	require.Equal(t, []int{2, 1}, order)
	require.True(t, g.IsClosed())

	closed := false
	g.Add(NewSubscription(func() { closed = true }))
	require.True(t, closed)
	require.Equal(t, 0, g.Len())
}
