// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package events

import (
	"fmt"
	"sync"

	"github.com/livekit/protocol/logger"
)

type listener[D any] struct {
	id uint64
	fn func(D)
}

// Emitter dispatches events to listeners in registration order.
// A panicking listener is logged and skipped, the remaining listeners still run.
type Emitter[E comparable, D any] struct {
	logger logger.Logger

	lock      sync.Mutex
	nextID    uint64
	listeners map[E][]listener[D]
}

func NewEmitter[E comparable, D any](l logger.Logger) *Emitter[E, D] {
	if l == nil {
		l = logger.GetLogger()
	}
	return &Emitter[E, D]{
		logger:    l,
		listeners: make(map[E][]listener[D]),
	}
}

func (e *Emitter[E, D]) On(event E, fn func(D)) Subscription {
	e.lock.Lock()
	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listener[D]{id: id, fn: fn})
	e.lock.Unlock()

	return NewSubscription(func() {
		e.off(event, id)
	})
}

func (e *Emitter[E, D]) off(event E, id uint64) {
	e.lock.Lock()
	defer e.lock.Unlock()

	ls := e.listeners[event]
	for i, l := range ls {
		if l.id == id {
			// copy so an in-flight Emit keeps its snapshot
			next := make([]listener[D], 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			if len(next) == 0 {
				delete(e.listeners, event)
			} else {
				e.listeners[event] = next
			}
			return
		}
	}
}

func (e *Emitter[E, D]) Emit(event E, data D) {
	e.lock.Lock()
	ls := e.listeners[event]
	e.lock.Unlock()

	for _, l := range ls {
		e.invoke(event, l.fn, data)
	}
}

func (e *Emitter[E, D]) invoke(event E, fn func(D), data D) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			e.logger.Errorw("event listener panicked", err, "event", event)
		}
	}()
	fn(data)
}

func (e *Emitter[E, D]) ListenerCount(event E) int {
	e.lock.Lock()
	defer e.lock.Unlock()

	return len(e.listeners[event])
}

func (e *Emitter[E, D]) TotalListeners() int {
	e.lock.Lock()
	defer e.lock.Unlock()

	total := 0
	for _, ls := range e.listeners {
		total += len(ls)
	}
	return total
}
