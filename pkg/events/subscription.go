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
	"sync"
)

// Subscription is the handle returned when registering a listener.
// Close removes the listener and is safe to call more than once.
type Subscription interface {
	Close()
}

type subscription struct {
	once    sync.Once
	onClose func()
}

func NewSubscription(onClose func()) Subscription {
	return &subscription{onClose: onClose}
}

func (s *subscription) Close() {
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
}

type noopSubscription struct{}

func (noopSubscription) Close() {}

var NoopSubscription Subscription = noopSubscription{}

// Group collects subscriptions and releases all of them exactly once.
// Subscriptions added after the group is closed are closed immediately.
type Group struct {
	lock   sync.Mutex
	subs   []Subscription
	closed bool
}

func (g *Group) Add(subs ...Subscription) {
	g.lock.Lock()
	if g.closed {
		g.lock.Unlock()
		for _, s := range subs {
			s.Close()
		}
		return
	}
	g.subs = append(g.subs, subs...)
	g.lock.Unlock()
}

// Close releases subscriptions in reverse registration order.
// Returns false if the group had already been closed.
func (g *Group) Close() bool {
	g.lock.Lock()
	if g.closed {
		g.lock.Unlock()
		return false
	}
	g.closed = true
	subs := g.subs
	g.subs = nil
	g.lock.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Close()
	}
	return true
}

func (g *Group) IsClosed() bool {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.closed
}

func (g *Group) Len() int {
	g.lock.Lock()
	defer g.lock.Unlock()

	return len(g.subs)
}
