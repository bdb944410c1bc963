package sse

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Hub fans out server-sent events to the subscribers of a conversation.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[chan []byte]struct{})}
}

func (h *Hub) Subscribe(conversationID string) (<-chan []byte, func()) {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	if _, ok := h.topics[conversationID]; !ok {
		h.topics[conversationID] = make(map[chan []byte]struct{})
	}
	h.topics[conversationID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if subscribers, ok := h.topics[conversationID]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(h.topics, conversationID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers payload to every subscriber of conversationID and
// returns how many received it. Slow subscribers are skipped.
func (h *Hub) Publish(conversationID string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for ch := range h.topics[conversationID] {
		select {
		case ch <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[conversationID])
}

// Event formats one server-sent event with a JSON data line.
func Event(name string, data any) ([]byte, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", name, err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", name, encoded)), nil
}
