package queue

import (
	"context"
	"sync"

	"switchboard/internal/campaign"
	"switchboard/pkg/metrics"
)

// Memory is an in-process queue for local development and tests. It keeps
// the JetStream contract: a batch leaves the queue only when h succeeds,
// and a batch id is accepted once.
type Memory struct {
	mu      sync.Mutex
	pending []campaign.Batch
	seen    map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]struct{}{}}
}

func (q *Memory) PublishBatch(ctx context.Context, b campaign.Batch) error {
	data, err := encodeBatch(b)
	if err != nil {
		return err
	}
	b, err = decodeBatch(data)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.seen[b.ID]; dup {
		return nil
	}
	q.seen[b.ID] = struct{}{}
	q.pending = append(q.pending, b)
	return nil
}

func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain delivers queued batches in order until the queue is empty, a
// handler fails or ctx is done. A failed batch stays at the head of the
// queue.
func (q *Memory) Drain(ctx context.Context, h Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return nil
		}
		b := q.pending[0]
		q.mu.Unlock()

		if err := h(ctx, b); err != nil {
			metrics.QueueDeliveries.WithLabelValues("nak").Inc()
			return err
		}
		metrics.QueueDeliveries.WithLabelValues("ack").Inc()

		q.mu.Lock()
		q.pending = q.pending[1:]
		q.mu.Unlock()
	}
}
