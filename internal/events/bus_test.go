package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-companion-demo/companion/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(logger.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	ev := New(ParamsUpdated, "user-1", map[string]int{"energy": 99, "mood": 72, "bond": 3})
	require.NoError(t, bus.Publish(ctx, ev))

	select {
	case got := <-ch:
		assert.Equal(t, ParamsUpdated, got.Type)
		assert.Equal(t, "user-1", got.Key)

		var payload map[string]int
		require.NoError(t, json.Unmarshal(got.Payload, &payload))
		assert.Equal(t, 72, payload["mood"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(logger.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, New(WizardStep, "u", nil)))

	for _, ch := range []<-chan Event{a, b} {
		select {
		case got := <-ch:
			assert.Equal(t, WizardStep, got.Type)
			assert.Empty(t, got.Payload)
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered to every subscriber")
		}
	}
}

func TestBus_SubscriptionClosesOnCancel(t *testing.T) {
	bus := NewBus(logger.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel not closed")
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	_ = r.Publish(context.Background(), New(MessageAppended, "k", nil))
	_ = r.Publish(context.Background(), New(ReplyPending, "k", nil))
	assert.Equal(t, []Type{MessageAppended, ReplyPending}, r.Types())
}
