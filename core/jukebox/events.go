package jukebox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	EventTrackMinted        EventType = "track_minted"
	EventTrackRequested     EventType = "track_requested"
	EventTableCreated       EventType = "table_created"
	EventMembershipChanged  EventType = "membership_changed"
	EventAdminChanged       EventType = "admin_changed"
	EventTableStatusChanged EventType = "table_status_changed"
	EventSkipVoted          EventType = "skip_voted"
	EventQueueAdvanced      EventType = "queue_advanced"
)

// Event 引擎事件，提交后才会发出
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	TableID    string            `json:"tableId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// Emitter 事件发布，发后不管
type Emitter interface {
	Emit(ctx context.Context, evt *Event)
}

// NoopEmitter 丢弃所有事件
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, *Event) {}

// MultiEmitter 依次分发给多个 Emitter
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, evt *Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, evt)
		}
	}
}

func newEvent(typ EventType, tableID string, attrs map[string]string, at time.Time) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       typ,
		TableID:    tableID,
		Attributes: attrs,
		Timestamp:  at.UnixMilli(),
	}
}
