package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timeout receiving")
	}
	return 0
}

func TestBrokerOrdering(t *testing.T) {
	b := NewBroker[int]()
	defer b.Close()

	fast := b.Subscribe("fast", 1)
	slow := b.Subscribe("slow", 0)

	for i := range 1000 {
		require.NoError(t, b.Publish(i))
	}

	for i := range 1000 {
		require.Equal(t, i, receive(t, fast))
	}
	for i := range 1000 {
		require.Equal(t, i, receive(t, slow))
	}
}

func TestBrokerNoSubscribers(t *testing.T) {
	b := NewBroker[int]()
	require.ErrorIs(t, b.Publish(1), ErrNoSubscribers)

	ch := b.Subscribe("a", 1)
	b.Unsubscribe("a")
	require.ErrorIs(t, b.Publish(1), ErrNoSubscribers)

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "channel not closed")
	}
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker[string]()
	ch := b.Subscribe("a", 0)
	require.NoError(t, b.Publish("x"))
	b.Close()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			require.FailNow(t, "channel not closed")
		}
	}
}

func TestBrokerResubscribe(t *testing.T) {
	b := NewBroker[int]()
	defer b.Close()

	first := b.Subscribe("a", 1)
	second := b.Subscribe("a", 1)
	require.NoError(t, b.Publish(7))
	require.Equal(t, 7, receive(t, second))

	select {
	case _, ok := <-first:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "replaced channel not closed")
	}
}
