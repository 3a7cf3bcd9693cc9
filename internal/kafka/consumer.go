package kafka

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

// Attempts per message before the consumer logs it and moves on.
const maxAttempts = 3

type Consumer struct {
	r       *kafka.Reader
	workers int
	backoff time.Duration
}

func NewConsumer(brokers []string, group string, topics []string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, backoff: 200 * time.Millisecond}
}

// workerFor pins a topic partition to one worker, so offsets of a partition are
// handled and committed in order.
func workerFor(topic string, partition, workers int) int {
	return int(xxhash.Sum64String(topic+"/"+strconv.Itoa(partition)) % uint64(workers))
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, h, m)
			}
		}(lanes[i])
	}
	defer wg.Wait()
	defer func() {
		for _, l := range lanes {
			close(l)
		}
	}()

	// dispatcher loop
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case lanes[workerFor(m.Topic, m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle retries h with a light backoff. A message that keeps failing is logged
// and left uncommitted; the next committed offset of its partition moves past it.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = h(ctx, m); err == nil {
			break
		}
		log.Printf("layer=kafka component=consumer topic=%s partition=%d offset=%d attempt=%d err=%v",
			m.Topic, m.Partition, m.Offset, attempt, err)
		select {
		case <-time.After(time.Duration(attempt) * c.backoff):
		case <-ctx.Done():
			return
		}
	}
	if err != nil {
		log.Printf("layer=kafka component=consumer topic=%s partition=%d offset=%d outcome=skipped",
			m.Topic, m.Partition, m.Offset)
		return
	}
	// commit on success
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Printf("layer=kafka component=consumer topic=%s partition=%d offset=%d method=commit err=%v",
			m.Topic, m.Partition, m.Offset, err)
	}
}
