package observable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	v := NewValue(1, nil)
	require.Equal(t, 1, v.Get())

	var seen []int
	sub := v.Subscribe(func(n int) { seen = append(seen, n) })
	require.Equal(t, 1, v.SubscriberCount())

	v.Set(2)
	require.Equal(t, 3, v.Update(func(n int) int { return n + 1 }))
	require.Equal(t, []int{2, 3}, seen)
	require.Equal(t, uint64(2), v.Version())

	sub.Close()
	v.Set(10)
	require.Equal(t, []int{2, 3}, seen)
	require.Equal(t, 10, v.Get())
	require.Equal(t, 0, v.SubscriberCount())
}

func TestValueConcurrentWriters(t *testing.T) {
	const (
		rounds  = 500
		writers = 4
		writes  = 50
	)

	for round := 0; round < rounds; round++ {
		v := NewValue(0, nil)

		var lock sync.Mutex
		var seen []int
		sub := v.Subscribe(func(n int) {
			lock.Lock()
			seen = append(seen, n)
			lock.Unlock()
		})

		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < writes; i++ {
					v.Update(func(n int) int { return n + 1 })
				}
			}()
		}
		wg.Wait()
		sub.Close()

		lock.Lock()
		require.Len(t, seen, writers*writes, "round %d", round)
		// every Update increments, so write order is ascending order
		for i, n := range seen {
			require.Equal(t, i+1, n, "round %d", round)
		}
		require.Equal(t, v.Get(), seen[len(seen)-1], "round %d", round)
		lock.Unlock()
	}
}

func TestValueSetFromSubscriber(t *testing.T) {
	v := NewValue(0, nil)

	var seen []int
	sub := v.Subscribe(func(n int) {
		seen = append(seen, n)
		if n == 1 {
			v.Set(2)
			// queued until this notification has reached every subscriber
			require.Equal(t, []int{1}, seen)
		}
	})
	defer sub.Close()

	var other []int
	otherSub := v.Subscribe(func(n int) { other = append(other, n) })
	defer otherSub.Close()

	v.Set(1)
	require.Equal(t, []int{1, 2}, seen)
	require.Equal(t, []int{1, 2}, other)
	require.Equal(t, 2, v.Get())
}
