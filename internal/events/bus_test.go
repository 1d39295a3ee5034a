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

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()

	ch, unsub := bus.Subscribe("mcp.status")
	defer unsub()

	published := bus.Publish("mcp.status", map[string]string{"server": "fs"})
	assert.NotEmpty(t, published.ID)
	assert.Equal(t, "mcp.status", published.Topic)
	assert.False(t, published.Timestamp.IsZero())

	received := <-ch
	assert.Equal(t, published.ID, received.ID)
	assert.Equal(t, map[string]string{"server": "fs"}, received.Payload)
}

func TestPublishOtherTopicNotDelivered(t *testing.T) {
	bus := NewBus()

	ch, unsub := bus.Subscribe("mcp.status")
	defer unsub()

	bus.Publish("other.topic", nil)

	select {
	case event := <-ch:
		t.Fatalf("unexpected event: %+v", event)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	ch, unsub := bus.Subscribe("mcp.status")
	require.Equal(t, 1, bus.SubscriberCount("mcp.status"))

	unsub()
	assert.Equal(t, 0, bus.SubscriberCount("mcp.status"))

	// Channel is closed after unsubscribe.
	_, ok := <-ch
	assert.False(t, ok)
}

func TestPublishFullChannelDoesNotBlock(t *testing.T) {
	bus := NewBus()

	_, unsub := bus.Subscribe("mcp.status")
	defer unsub()

	// Fill the buffer and one more. Publish must not block.
	for i := 0; i < 150; i++ {
		bus.Publish("mcp.status", i)
	}
}

func TestPublishDuringUnsubscribeIsSafe(t *testing.T) {
	bus := NewBus()

	// A publish racing an unsubscribe must never send on the closed
	// channel. Exercised under -race in CI.
	for i := 0; i < 2000; i++ {
		_, unsub := bus.Subscribe("mcp.status")

		done := make(chan struct{})
		go func() {
			bus.Publish("mcp.status", i)
			close(done)
		}()
		unsub()
		<-done
	}

	assert.Equal(t, 0, bus.SubscriberCount("mcp.status"))
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	ch1, unsub1 := bus.Subscribe("mcp.status")
	defer unsub1()
	ch2, unsub2 := bus.Subscribe("mcp.status")
	defer unsub2()

	bus.Publish("mcp.status", "payload")

	event1 := <-ch1
	event2 := <-ch2
	assert.Equal(t, event1.ID, event2.ID)
}
