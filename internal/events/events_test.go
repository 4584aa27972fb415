package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	got []BookingEvent
	err error
}

func (h *recordingHandler) HandleBookingEvent(_ context.Context, ev BookingEvent) error {
	h.got = append(h.got, ev)
	return h.err
}

func TestNewPublishing(t *testing.T) {
	ev := BookingEvent{
		Type:       BookingConfirmed,
		BookingID:  12,
		UserID:     7,
		ScheduleID: 3,
		ClassName:  "Spin",
		StartTime:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	msg, err := newPublishing(ev)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, "booking.confirmed", msg.Type)

	var decoded BookingEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, 12, decoded.BookingID)
	assert.Equal(t, "Spin", decoded.ClassName)
	assert.NotContains(t, string(msg.Body), "reason", "empty reason is omitted")
}

func TestConsumerHandle(t *testing.T) {
	h := &recordingHandler{}
	c := NewConsumer("amqp://unused", h)

	body, _ := json.Marshal(BookingEvent{Type: BookingCancelled, BookingID: 5, Reason: "sick"})
	require.NoError(t, c.handle(context.Background(), body))
	require.Len(t, h.got, 1)
	assert.Equal(t, BookingCancelled, h.got[0].Type)
	assert.Equal(t, "sick", h.got[0].Reason)

	assert.Error(t, c.handle(context.Background(), []byte("{not json")))

	h.err = errors.New("smtp down")
	assert.EqualError(t, c.handle(context.Background(), body), "smtp down")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), BookingEvent{Type: BookingAttended}))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
