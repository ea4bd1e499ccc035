package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Publish(_ context.Context, evt Event) error {
	r.events = append(r.events, evt)
	return r.err
}
func (r *recorder) Close() error { return nil }

func TestPublish_UsesCurrentPublisher(t *testing.T) {
	rec := &recorder{}
	prev := SetPublisher(rec)
	t.Cleanup(func() { SetPublisher(prev) })

	Publish(context.Background(), Event{Type: TypeLeaseTerminated, EntityID: 3})

	require.Len(t, rec.events, 1)
	assert.Equal(t, TypeLeaseTerminated, rec.events[0].Type)
	assert.False(t, rec.events[0].OccurredAt.IsZero())
}

func TestPublish_ErrorIsSwallowed(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	prev := SetPublisher(rec)
	t.Cleanup(func() { SetPublisher(prev) })

	assert.NotPanics(t, func() {
		Publish(context.Background(), Event{Type: TypeNotificationCreated})
	})
	assert.Len(t, rec.events, 1)
}

func TestSetPublisher_NilFallsBackToNop(t *testing.T) {
	prev := SetPublisher(nil)
	t.Cleanup(func() { SetPublisher(prev) })

	_, ok := current.(NopPublisher)
	assert.True(t, ok)
}

func TestNewPublishing(t *testing.T) {
	at := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	msg, err := newPublishing(Event{Type: TypePaymentsGenerated, OccurredAt: at, UserID: 2, Payload: map[string]int{"created": 3}})
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(amqp091.Persistent), msg.DeliveryMode)
	assert.Equal(t, TypePaymentsGenerated, msg.Type)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, float64(2), decoded["user_id"])
	assert.Equal(t, map[string]any{"created": float64(3)}, decoded["payload"])
}
