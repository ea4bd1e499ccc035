package events

import (
	"context"
	"sync"
	"time"

	"rental-backend/internal/logging"
)

const (
	TypeNotificationCreated = "notification.created"
	TypeLeaseTerminated     = "lease.terminated"
	TypePaymentsGenerated   = "payments.generated"
)

// Event dışarıya (RabbitMQ) yayınlanan olay
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	UserID     uint      `json:"user_id"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   uint      `json:"entity_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher AMQP_URL tanımlı değilken kullanılır
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                        { return nil }

var (
	mu      sync.RWMutex
	current Publisher = NopPublisher{}
)

// SetPublisher uygulama genelindeki publisher'ı değiştirir ve öncekini döner
func SetPublisher(p Publisher) Publisher {
	mu.Lock()
	defer mu.Unlock()
	prev := current
	if p == nil {
		p = NopPublisher{}
	}
	current = p
	return prev
}

// Publish olayı best-effort yayınlar; hata sadece loglanır
func Publish(ctx context.Context, evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	mu.RLock()
	p := current
	mu.RUnlock()

	if err := p.Publish(ctx, evt); err != nil {
		logging.L().WithComponent(logging.ComponentEvents).WarnContext(ctx, "Olay yayınlanamadı",
			"type", evt.Type, "entity_id", evt.EntityID, "error", err)
	}
}
