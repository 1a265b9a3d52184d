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

package scheduler

import (
	"fmt"
	"sync"

	"github.com/frostbyte73/core"
	"github.com/gammazero/deque"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"
)

// Task is a queued operation that may be cancelled before it runs.
type Task interface {
	// Cancel returns true if the task was prevented from running.
	Cancel() bool
}

const (
	taskPending int32 = iota
	taskStarted
	taskCanceled
)

type task struct {
	op    func()
	state atomic.Int32
}

func (t *task) Cancel() bool {
	return t.state.CompareAndSwap(taskPending, taskCanceled)
}

// Queue runs operations one at a time in submission order. Every operation
// is a turn: work queued from inside a turn runs in a later turn.
//
// A Queue is either driven by its own goroutine (Start) or pumped by the
// owner (Drain).
type Queue struct {
	logger logger.Logger
	name   string

	lock    sync.Mutex
	ops     deque.Deque[*task]
	wake    chan struct{}
	running atomic.Bool
	stopped core.Fuse
}

func NewQueue(l logger.Logger, name string) *Queue {
	if l == nil {
		l = logger.GetLogger()
	}
	return &Queue{
		logger: l,
		name:   name,
		wake:   make(chan struct{}, 1),
	}
}

func (q *Queue) Start() {
	if q.running.Swap(true) {
		return
	}
	go q.process()
}

func (q *Queue) Stop() {
	q.stopped.Break()
}

func (q *Queue) IsStopped() bool {
	return q.stopped.IsBroken()
}

// Enqueue schedules op for a later turn.
func (q *Queue) Enqueue(op func()) {
	q.enqueue(op)
}

// Defer schedules op for a later turn and returns a handle that can cancel it.
func (q *Queue) Defer(op func()) Task {
	return q.enqueue(op)
}

func (q *Queue) enqueue(op func()) *task {
	t := &task{op: op}
	if q.stopped.IsBroken() {
		t.state.Store(taskCanceled)
		return t
	}

	q.lock.Lock()
	q.ops.PushBack(t)
	q.lock.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t
}

func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.ops.Len()
}

// Drain runs the operations that are pending when it is called and returns
// how many ran. Operations queued while draining are left for the next call.
func (q *Queue) Drain() int {
	q.lock.Lock()
	pending := q.ops.Len()
	q.lock.Unlock()

	ran := 0
	for i := 0; i < pending; i++ {
		t := q.pop()
		if t == nil {
			break
		}
		if q.run(t) {
			ran++
		}
	}
	return ran
}

func (q *Queue) pop() *task {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.ops.Len() == 0 {
		return nil
	}
	return q.ops.PopFront()
}

func (q *Queue) run(t *task) bool {
	if q.stopped.IsBroken() {
		return false
	}
	if !t.state.CompareAndSwap(taskPending, taskStarted) {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			q.logger.Errorw("queued operation panicked", fmt.Errorf("%v", r), "name", q.name)
		}
	}()
	t.op()
	return true
}

func (q *Queue) process() {
	for {
		select {
		case <-q.stopped.Watch():
			return
		case <-q.wake:
		}

		for {
			t := q.pop()
			if t == nil {
				break
			}
			q.run(t)
			if q.stopped.IsBroken() {
				return
			}
		}
	}
}
