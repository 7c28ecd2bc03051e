// Package events is an in-process pub/sub hub for live survey streams.
package events

import (
	"sync"
)

const defaultBuffer = 16

// Hub fans events out to subscribers of a topic. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber[T]]struct{}
	buffer int
}

type subscriber[T any] struct {
	ch chan T
}

func NewHub[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub[T]{subs: make(map[string]map[*subscriber[T]]struct{}), buffer: buffer}
}

// Subscribe returns a channel of events for topic and a cancel func that
// must be called to release it. The channel is closed by cancel.
func (h *Hub[T]) Subscribe(topic string) (<-chan T, func()) {
	s := &subscriber[T]{ch: make(chan T, h.buffer)}

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*subscriber[T]]struct{})
	}
	h.subs[topic][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[topic], s)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

// Publish delivers ev to every current subscriber of topic and returns how
// many received it.
func (h *Hub[T]) Publish(topic string, ev T) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.subs[topic] {
		select {
		case s.ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of subscribers on topic.
func (h *Hub[T]) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
