package consumer

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Callbacks receives the raw changed row for each operation on one record
// kind's topic. Delivery may be at-least-once; callbacks that care must
// deduplicate themselves. Any nil callback means that operation is ignored.
type Callbacks struct {
	OnInsert func(context.Context, ChangeEvent) error
	OnUpdate func(context.Context, ChangeEvent) error
	OnDelete func(context.Context, ChangeEvent) error
}

// Handle routes a change event by the operation suffix of its event type.
func (c Callbacks) Handle(ctx context.Context, event ChangeEvent) error {
	switch {
	case strings.HasSuffix(event.EventType, ".created"):
		if c.OnInsert != nil {
			return c.OnInsert(ctx, event)
		}
	case strings.HasSuffix(event.EventType, ".updated"):
		if c.OnUpdate != nil {
			return c.OnUpdate(ctx, event)
		}
	case strings.HasSuffix(event.EventType, ".deleted"):
		if c.OnDelete != nil {
			return c.OnDelete(ctx, event)
		}
	}
	return nil
}

// SubscriptionConfig carries the Kafka coordinates for one topic subscription.
type SubscriptionConfig struct {
	Brokers []string
	GroupID string
	Topic   string
}

// Subscription is a running change-feed listener for one topic. Close
// releases the reader and waits for the processing loop to exit, so the
// handle can be released in every exit path.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	closer sync.Once
	reader Reader
}

// Subscribe starts consuming a record kind's change topic and dispatching
// to the callbacks. The returned Subscription must be closed.
func Subscribe(ctx context.Context, cfg SubscriptionConfig, callbacks Callbacks) *Subscription {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.Brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})

	runCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
		reader: reader,
	}

	proc := NewProcessor(reader, callbacks)
	go func() {
		defer close(sub.done)
		if err := proc.Run(runCtx); err != nil && err != context.Canceled {
			log.Printf("subscription stopped with error (topic=%s): %v", cfg.Topic, err)
		}
	}()

	return sub
}

// Close stops the subscription and waits for its loop to finish.
func (s *Subscription) Close() error {
	var err error
	s.closer.Do(func() {
		s.cancel()
		err = s.reader.Close()
		<-s.done
	})
	return err
}
