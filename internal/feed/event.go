// Package feed carries committed complaint changes to live dashboards.
//
// Events are published after the database commit. A Redis channel fans them
// out across server processes; each process bridges the channel into a Hub
// of websocket clients.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/facility_triage/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel complaint events travel on.
const DefaultChannel = "complaints:events"

// Event types.
const (
	EventCreated       = "complaint.created"
	EventStatusChanged = "complaint.status_changed"
	EventDeleted       = "complaint.deleted"
)

// Event describes one committed change.
type Event struct {
	Type        string          `json:"type"`
	ComplaintID string          `json:"complaintId"`
	Status      models.Status   `json:"status,omitempty"`
	FromStatus  models.Status   `json:"fromStatus,omitempty"`
	Priority    models.Priority `json:"priority,omitempty"`
	Category    models.Category `json:"category,omitempty"`
	SlotDate    *string         `json:"slotDate,omitempty"`
	SlotLabel   *string         `json:"slotLabel,omitempty"`
	ActorID     string          `json:"actorId"`
	At          time.Time       `json:"at"`
}

// NewComplaintEvent fills an Event from a complaint snapshot.
func NewComplaintEvent(kind string, c *models.Complaint, actorID string, at time.Time) Event {
	return Event{
		Type:        kind,
		ComplaintID: c.ID,
		Status:      c.Status,
		Priority:    c.Priority,
		Category:    c.Category,
		SlotDate:    c.SlotDate,
		SlotLabel:   c.SlotLabel,
		ActorID:     actorID,
		At:          at,
	}
}

// Publisher emits events. Implementations must not block on slow readers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisPublisher publishes JSON events on a Redis channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel (DefaultChannel when empty).
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, data).Err()
}

// Bridge subscribes to channel and forwards every event to hub until ctx is
// done.
func Bridge(ctx context.Context, rdb *redis.Client, channel string, hub *Hub) {
	if channel == "" {
		channel = DefaultChannel
	}
	pubsub := rdb.Subscribe(ctx, channel)
	defer pubsub.Close()
	ch := pubsub.Channel()

	log.Println("Subscribed to Redis channel:", channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("Invalid complaint event payload: %v", err)
				continue
			}
			hub.Broadcast(ev)
		}
	}
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
