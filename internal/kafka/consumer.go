package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Handler must return nil only when the message was fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Consumer reads a topic as part of a consumer group with at-least-once
// delivery. Messages are fetched without committing (FetchMessage, not
// ReadMessage, which auto-commits in group mode), handled by a worker pool
// that retries failures with backoff, and committed only up to the highest
// contiguous handled offset per partition. A message that has not been
// handled yet is never skipped by a commit for a later one.
type Consumer struct {
	r          *kafka.Reader
	workers    int
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:          r,
		workers:    workers,
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 5 * time.Second,
	}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message)
	track := newOffsetTracker()

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if !c.handleWithRetry(ctx, h, m) {
					return // shutting down; the offset stays uncommitted
				}
				if upTo, ok := track.complete(m.Partition, m.Offset); ok {
					c.commit(ctx, m, upTo)
				}
			}
		}()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			close(jobs)
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		track.add(m.Partition, m.Offset)
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil
		}
	}
}

// handleWithRetry keeps retrying a failing handler with exponential backoff
// so a transient downstream outage does not lose the message. It returns
// false only when the context is cancelled before the handler succeeds.
func (c *Consumer) handleWithRetry(ctx context.Context, h Handler, m kafka.Message) bool {
	backoff := c.minBackoff
	for {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		log.WithError(err).WithFields(log.Fields{
			"topic": m.Topic, "partition": m.Partition, "offset": m.Offset,
		}).Warn("handler failed, will retry")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if backoff < c.maxBackoff {
			backoff *= 2
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message, upTo int64) {
	m.Offset = upTo
	if err := c.r.CommitMessages(ctx, m); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"topic": m.Topic, "partition": m.Partition,
		}).Warn("offset commit failed")
	}
}
