package fanout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan int) []int {
	var out []int
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestEachSubscriberSeesEveryValueInOrder(t *testing.T) {
	b := NewBroker[int](8)
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	for i := 1; i <= 5; i++ {
		b.Publish(i)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, drain(a))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, drain(c))
}

func TestSlowSubscriberLosesOldestNotNewest(t *testing.T) {
	b := NewBroker[int](3)
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 1; i <= 6; i++ {
		b.Publish(i)
	}

	assert.Equal(t, []int{4, 5, 6}, drain(ch), "oldest shed, order kept")
}

func TestSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	b := NewBroker[int](2)
	slow, cancelSlow := b.Subscribe()
	fast, cancelFast := b.Subscribe()
	defer cancelSlow()
	defer cancelFast()

	got := make([]int, 0, 10)
	for i := 1; i <= 10; i++ {
		b.Publish(i)
		got = append(got, <-fast)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
	assert.Equal(t, []int{9, 10}, drain(slow))
}

func TestCancelStopsDeliveryAndClosesChannel(t *testing.T) {
	b := NewBroker[int](4)
	ch, cancel := b.Subscribe()

	b.Publish(1)
	cancel()
	cancel() // idempotent
	b.Publish(2)

	v, ok := <-ch
	assert.Equal(t, 1, v)
	assert.True(t, ok)
	_, ok = <-ch
	assert.False(t, ok, "channel closed after cancel")
	assert.Zero(t, b.Len())
}

func TestCloseTerminatesEverything(t *testing.T) {
	b := NewBroker[int](4)
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Close()
	b.Publish(1) // no-op, must not panic

	_, ok := <-ch
	require.False(t, ok)

	late, lateCancel := b.Subscribe()
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok, "subscriptions after close are born closed")
}
