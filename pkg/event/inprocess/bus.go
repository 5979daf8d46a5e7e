/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package inprocess is an in-process event bus for single-node deployments and
// tests. Publishing never blocks the protocol step; Close drains the queue.
package inprocess

import (
	"context"
	"sync"

	"github.com/trustmesh/vci/pkg/event/spi"
)

// Handler consumes events from one topic.
type Handler func(ctx context.Context, e *spi.Event) error

// Bus fans events out to per-topic subscribers through a buffered queue.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler

	queue chan envelope
	wg    sync.WaitGroup

	closeOnce sync.Once
}

type envelope struct {
	topic string
	event *spi.Event
}

// NewBus returns a running bus with the given queue depth.
func NewBus(buffer int) *Bus {
	b := &Bus{
		subscribers: make(map[string][]Handler),
		queue:       make(chan envelope, buffer),
	}

	b.wg.Add(1)

	go b.dispatch()

	return b
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[topic] = append(b.subscribers[topic], h)
}

// Publish enqueues events for asynchronous delivery.
func (b *Bus) Publish(_ context.Context, topic string, events ...*spi.Event) error {
	for _, e := range events {
		b.queue <- envelope{topic: topic, event: e}
	}

	return nil
}

func (b *Bus) dispatch() {
	defer b.wg.Done()

	for env := range b.queue {
		b.mu.RLock()
		handlers := b.subscribers[env.topic]
		b.mu.RUnlock()

		for _, h := range handlers {
			// subscriber errors are the subscriber's problem; delivery continues
			_ = h(context.Background(), env.event)
		}
	}
}

// Close stops intake and blocks until queued events are delivered.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.queue)
	})

	b.wg.Wait()
}
