// Copyright 2025 Tom Barlow
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

// Package events provides an in-process broadcast bus for runtime events.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single published event.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Topic is the channel the event was published on.
	Topic string `json:"topic"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`

	// Payload is the event body.
	Payload any `json:"payload"`
}

// Bus routes published events to topic subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan Event),
	}
}

// Publish sends an event to all subscribers of the topic.
// Subscribers with full channels are skipped rather than blocked on.
func (b *Bus) Publish(topic string, payload any) Event {
	event := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	// The read lock is held across the sends so an unsubscribe cannot
	// close a channel mid-publish. Sends never block, so the lock is
	// held only briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}

	return event
}

// Subscribe returns a channel that receives events for a topic.
// Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, 100)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[topic]
		for i, sub := range subs {
			if sub == ch {
				b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}

	return ch, unsub
}

// SubscriberCount returns the number of subscribers for a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}
