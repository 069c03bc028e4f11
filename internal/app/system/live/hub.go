// Package live delivers query results to subscribers whenever the data
// behind them changes.
//
// A Hub routes change notifications by topic. A Subscription owns one
// goroutine that runs its load function once at start and again after each
// notification on any of its topics, handing the full result to the
// subscriber. Notifications that arrive while a load is running are
// coalesced into a single reload, so a burst of writes costs one query.
package live

import (
	"sync"

	"go.uber.org/zap"
)

// Topics. Per-key topics are built with Key.
const (
	TopicNews     = "camp_news"
	TopicNGOs     = "ngos"
	TopicChats    = "chats"
	TopicMessages = "messages"
)

// Key scopes a topic to one entity, e.g. Key(TopicMessages, chatID).
func Key(topic, id string) string {
	return topic + ":" + id
}

// Hub fans out change notifications to subscriptions. The zero value is
// not usable; call NewHub. A nil *Hub accepts Notify calls and drops them,
// which keeps stores usable without live delivery.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
	log    *zap.Logger
}

// NewHub returns an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		log:    logger,
	}
}

// Notify wakes every subscription listening on any of the given topics.
// It never blocks.
func (h *Hub) Notify(topics ...string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		for s := range h.topics[t] {
			s.wakeup()
		}
	}
}

// NotifyAll wakes every live subscription. Used by the polling fallback
// when change streams are unavailable.
func (h *Hub) NotifyAll() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[*Subscription]struct{})
	for _, subs := range h.topics {
		for s := range subs {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			s.wakeup()
		}
	}
}

// Count returns the number of live subscriptions.
func (h *Hub) Count() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[*Subscription]struct{})
	for _, subs := range h.topics {
		for s := range subs {
			seen[s] = struct{}{}
		}
	}
	return len(seen)
}

func (h *Hub) register(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range s.topics {
		subs, ok := h.topics[t]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.topics[t] = subs
		}
		subs[s] = struct{}{}
	}
}

func (h *Hub) unregister(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range s.topics {
		subs := h.topics[t]
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, t)
		}
	}
}
