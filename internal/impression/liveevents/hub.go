// Package liveevents fans recorded view events out to in-process subscribers.
// Publishing is best effort; a slow subscriber drops events instead of
// blocking the ingest path.
package liveevents

import (
	"errors"
	"strings"
	"sync"
)

const (
	StatusCounted  = "counted"
	StatusRejected = "rejected"

	SourceAPI    = "api"
	SourceReplay = "replay"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

type LiveEvent struct {
	SubmissionID string `json:"submission_id"`
	ViewerID     string `json:"viewer_id,omitempty"`
	OccurredAt   string `json:"occurred_at"`
	Region       string `json:"region,omitempty"`
	Device       string `json:"device,omitempty"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	Source       string `json:"source"`
}

type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []LiveEvent
	subs   map[uint64]chan LiveEvent
	nextID uint64
}

type Subscription struct {
	hub          *Hub
	submissionID string
	id           uint64
	ch           chan LiveEvent
	once         sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

func (h *Hub) Publish(submissionID string, event LiveEvent) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(submissionID)
	if key == "" {
		return
	}
	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, event)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan LiveEvent, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribe(submissionID string) (*Subscription, []LiveEvent, error) {
	if h == nil {
		return nil, nil, errors.New("hub_unavailable")
	}
	key := strings.TrimSpace(submissionID)
	if key == "" {
		return nil, nil, errors.New("invalid_submission_id")
	}

	stream := h.ensureStream(key)
	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan LiveEvent)
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan LiveEvent, h.subscriberBuffer)
	stream.subs[id] = ch
	buffer := append([]LiveEvent(nil), stream.buffer...)
	stream.mu.Unlock()

	return &Subscription{
		hub:          h,
		submissionID: key,
		id:           id,
		ch:           ch,
	}, buffer, nil
}

func (h *Hub) ensureStream(submissionID string) *stream {
	h.mu.RLock()
	current := h.streams[submissionID]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[submissionID]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan LiveEvent)}
		h.streams[submissionID] = current
	}
	return current
}

func (h *Hub) unsubscribe(submissionID string, id uint64) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(submissionID)
	if key == "" {
		return
	}

	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	delete(stream.subs, id)
	remaining := len(stream.subs)
	stream.mu.Unlock()
	if remaining != 0 {
		return
	}

	h.mu.Lock()
	current := h.streams[key]
	if current != stream {
		h.mu.Unlock()
		return
	}
	stream.mu.Lock()
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, key)
	}
	h.mu.Unlock()
}

func (s *Subscription) Events() <-chan LiveEvent {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.submissionID, s.id)
	})
}
