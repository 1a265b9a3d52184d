package observable

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/events"
)

type changed struct{}

// Value holds a value and notifies subscribers after each change.
//
// Notifications are delivered in write order, one at a time. A writer that
// finds another delivery in progress queues its value and returns; the
// goroutine already delivering hands it to subscribers next. The same applies
// to a Set made from inside a subscriber.
type Value[T any] struct {
	lock    sync.RWMutex
	value   T
	version uint64

	pending    deque.Deque[T]
	delivering bool

	emitter *events.Emitter[changed, T]
}

func NewValue[T any](initial T, l logger.Logger) *Value[T] {
	return &Value[T]{
		value:   initial,
		emitter: events.NewEmitter[changed, T](l),
	}
}

func (v *Value[T]) Get() T {
	v.lock.RLock()
	defer v.lock.RUnlock()

	return v.value
}

// Version increments on every Set or Update.
func (v *Value[T]) Version() uint64 {
	v.lock.RLock()
	defer v.lock.RUnlock()

	return v.version
}

func (v *Value[T]) Set(value T) {
	v.lock.Lock()
	v.value = value
	v.version++
	v.pending.PushBack(value)
	v.lock.Unlock()

	v.deliver()
}

// Update applies fn to the current value atomically and notifies with the result.
func (v *Value[T]) Update(fn func(T) T) T {
	v.lock.Lock()
	next := fn(v.value)
	v.value = next
	v.version++
	v.pending.PushBack(next)
	v.lock.Unlock()

	v.deliver()
	return next
}

func (v *Value[T]) deliver() {
	v.lock.Lock()
	if v.delivering {
		v.lock.Unlock()
		return
	}
	v.delivering = true
	for v.pending.Len() > 0 {
		next := v.pending.PopFront()
		v.lock.Unlock()

		// listener panics are recovered by the emitter
		v.emitter.Emit(changed{}, next)

		v.lock.Lock()
	}
	v.delivering = false
	v.lock.Unlock()
}

func (v *Value[T]) Subscribe(fn func(T)) events.Subscription {
	return v.emitter.On(changed{}, fn)
}

func (v *Value[T]) SubscriberCount() int {
	return v.emitter.ListenerCount(changed{})
}
