package events

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-companion-demo/companion/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topic is the single topic all companion events travel on
const Topic = "companion.events"

// Bus is an in-process pub/sub on top of watermill's go channel transport
type Bus struct {
	pubSub *gochannel.GoChannel
	log    *logger.Logger
}

// NewBus creates a bus. Events published with no subscriber are dropped.
func NewBus(log *logger.Logger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
	return &Bus{pubSub: pubSub, log: log.WithComponent("events")}
}

// Publish sends ev to every subscriber
func (b *Bus) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(ev.Type))
	msg.Metadata.Set("key", ev.Key)
	return b.pubSub.Publish(Topic, msg)
}

// Subscribe returns a channel of decoded events. The channel is closed
// when ctx is cancelled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.log.Warn("Dropping malformed event", "message_uuid", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			select {
			case out <- ev:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close stops the bus and closes all subscriptions
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
