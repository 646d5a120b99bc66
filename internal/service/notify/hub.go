package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification for the dashboard.
type Type string

const (
	TypeCall    Type = "call"
	TypeSystem  Type = "system"
	TypeAlert   Type = "alert"
	TypeSuccess Type = "success"
	TypeError   Type = "error"
)

// Notification is one dashboard event.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
	Data      map[string]any `json:"data,omitempty"`
}

const subscriberBuffer = 16

// Hub stores recent notifications and fans them out to live subscribers.
// Publishing never blocks: a subscriber that cannot keep up misses events
// rather than stalling the call path.
type Hub struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
	order         []string
	subscribers   map[chan Notification]struct{}
}

// NewHub creates an empty notification hub.
func NewHub() *Hub {
	return &Hub{
		notifications: make(map[string]*Notification),
		subscribers:   make(map[chan Notification]struct{}),
	}
}

// Publish stores a notification and broadcasts it.
func (h *Hub) Publish(t Type, title, message string, data map[string]any) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Type:      t,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	h.mu.Lock()
	h.notifications[n.ID] = &n
	h.order = append(h.order, n.ID)
	for ch := range h.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
	h.mu.Unlock()

	return n
}

// Subscribe registers a live feed. The caller must Unsubscribe when done.
func (h *Hub) Subscribe() chan Notification {
	ch := make(chan Notification, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a live feed and closes its channel.
func (h *Hub) Unsubscribe(ch chan Notification) {
	h.mu.Lock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// List returns up to limit notifications, newest first.
func (h *Hub) List(limit int) []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.order) {
		limit = len(h.order)
	}

	out := make([]Notification, 0, limit)
	for i := len(h.order) - 1; i >= 0 && len(out) < limit; i-- {
		if n, ok := h.notifications[h.order[i]]; ok {
			out = append(out, *n)
		}
	}
	return out
}

// MarkRead flags one notification as read.
func (h *Hub) MarkRead(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.notifications[id]
	if !ok {
		return false
	}
	n.Read = true
	return true
}

// MarkAllRead flags every notification as read.
func (h *Hub) MarkAllRead() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, n := range h.notifications {
		n.Read = true
	}
}

// Delete removes one notification.
func (h *Hub) Delete(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.notifications[id]; !ok {
		return false
	}
	delete(h.notifications, id)
	for i, oid := range h.order {
		if oid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return true
}

// ClearOld drops notifications older than the given age and reports how many
// were removed.
func (h *Hub) ClearOld(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)

	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.order[:0]
	removed := 0
	for _, id := range h.order {
		n, ok := h.notifications[id]
		if !ok {
			continue
		}
		if n.Timestamp.Before(cutoff) {
			delete(h.notifications, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	h.order = kept
	return removed
}

// NotifyIncomingCall announces a new inbound call.
func (h *Hub) NotifyIncomingCall(phoneNumber, callID string) {
	h.Publish(TypeCall, "Incoming Call",
		fmt.Sprintf("New call from %s", phoneNumber),
		map[string]any{"phoneNumber": phoneNumber, "callId": callID, "action": "incoming_call"})
}

// NotifyCallEnded announces a finished call and its outcome.
func (h *Hub) NotifyCallEnded(phoneNumber string, duration time.Duration, outcome string) {
	h.Publish(TypeCall, "Call Ended",
		fmt.Sprintf("Call with %s ended (%ds) - %s", phoneNumber, int(duration.Seconds()), outcome),
		map[string]any{"phoneNumber": phoneNumber, "duration": int(duration.Seconds()), "outcome": outcome, "action": "call_ended"})
}

// NotifySpamDetected announces a blocked spam call.
func (h *Hub) NotifySpamDetected(phoneNumber, reason string) {
	h.Publish(TypeAlert, "Spam Call Blocked",
		fmt.Sprintf("Blocked spam call from %s: %s", phoneNumber, reason),
		map[string]any{"phoneNumber": phoneNumber, "reason": reason, "action": "spam_blocked"})
}

// NotifyLeadQualified announces a newly qualified lead.
func (h *Hub) NotifyLeadQualified(phoneNumber string, leadScore int) {
	h.Publish(TypeSuccess, "New Qualified Lead",
		fmt.Sprintf("%s qualified as lead (score: %d)", phoneNumber, leadScore),
		map[string]any{"phoneNumber": phoneNumber, "leadScore": leadScore, "action": "lead_qualified"})
}

// NotifySystemError announces an internal failure.
func (h *Hub) NotifySystemError(message string, details map[string]any) {
	data := map[string]any{"action": "system_error"}
	if details != nil {
		data["details"] = details
	}
	h.Publish(TypeError, "System Error", message, data)
}
