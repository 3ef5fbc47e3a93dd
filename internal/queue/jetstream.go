package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"switchboard/internal/campaign"
	"switchboard/pkg/logger"
	"switchboard/pkg/metrics"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	DefaultStream  = "CAMPAIGN_BATCHES"
	subjectPrefix  = "campaign.batch"
	consumerName   = "campaign-senders"
	defaultAckWait = 2 * time.Minute
	maxDeliver     = 5
	nakDelay       = 30 * time.Second
	// Stays well inside defaultAckWait so a drained batch is acked before
	// the server would redeliver it.
	defaultDrain = 30 * time.Second
)

type Config struct {
	URL    string
	Token  string
	Stream string
	// Drain bounds how long Run waits for in-flight batches on shutdown.
	Drain time.Duration
}

// JetStream is a work-queue stream: each batch is delivered to one worker
// and removed once acknowledged.
type JetStream struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream string
	drain  time.Duration
	log    *slog.Logger
}

func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*JetStream, error) {
	opts := []nats.Option{
		nats.Name("switchboard"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = DefaultStream
	}
	drain := cfg.Drain
	if drain <= 0 {
		drain = defaultDrain
	}
	q := &JetStream{conn: nc, js: js, stream: stream, drain: drain, log: log}
	if err := q.EnsureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return q, nil
}

func (q *JetStream) EnsureStream(ctx context.Context) error {
	_, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        q.stream,
		Subjects:    []string{subjectPrefix + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  10 * time.Minute,
		Replicas:    1,
		Description: "Campaign send batches",
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}
	return nil
}

func subject(b campaign.Batch) string {
	return subjectPrefix + "." + b.TenantID
}

// PublishBatch enqueues a batch. The batch id is the message id, so a
// re-publish inside the duplicate window is dropped by the server.
func (q *JetStream) PublishBatch(ctx context.Context, b campaign.Batch) error {
	data, err := encodeBatch(b)
	if err != nil {
		return err
	}
	if _, err := q.js.Publish(ctx, subject(b), data, jetstream.WithMsgID(b.ID)); err != nil {
		return fmt.Errorf("failed to publish batch: %w", err)
	}
	return nil
}

// Run pulls batches until ctx is done. A delivery is acked only after h
// returns nil; h failures are redelivered after a delay up to maxDeliver.
// Run returns once every handler it started has settled its delivery.
func (q *JetStream) Run(ctx context.Context, concurrency int, h Handler) error {
	cons, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       defaultAckWait,
		MaxDeliver:    maxDeliver,
		FilterSubject: subjectPrefix + ".>",
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	fetch := func(max int, each func(delivery)) error {
		batch, err := cons.Fetch(max, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			return err
		}
		for msg := range batch.Messages() {
			each(msg)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, nats.ErrTimeout) {
			q.log.Warn("fetch batch error", "err", err)
		}
		return nil
	}
	return q.consume(ctx, concurrency, q.drain, fetch, h)
}

// delivery is the part of a jetstream.Msg the worker settles.
type delivery interface {
	Data() []byte
	Subject() string
	Metadata() (*jetstream.MsgMetadata, error)
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
}

// consume runs h over fetched deliveries with at most concurrency in flight.
// Handlers run on a context detached from ctx: after ctx is done they get
// up to drain to finish before their context is cancelled too.
func (q *JetStream) consume(ctx context.Context, concurrency int, drain time.Duration, fetch func(max int, each func(delivery)) error, h Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	var wg sync.WaitGroup
	defer func() {
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(drain):
			q.log.Warn("drain deadline passed, cancelling in-flight batches", "drain", drain)
			cancel()
			<-done
		}
	}()

	sem := make(chan struct{}, concurrency)
	start := func(m delivery) {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			q.deliver(hctx, m, h)
		}()
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := fetch(concurrency, start); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.log.Warn("fetch failed", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (q *JetStream) deliver(ctx context.Context, m delivery, h Handler) {
	b, err := decodeBatch(m.Data())
	if err != nil {
		q.log.Error("dropping undecodable batch", "subject", m.Subject(), "err", err)
		_ = m.Term()
		metrics.QueueDeliveries.WithLabelValues("term").Inc()
		return
	}
	log := q.log.With("tenant_id", b.TenantID, "campaign_id", b.CampaignID, "batch_id", b.ID)
	if meta, err := m.Metadata(); err == nil && meta.NumDelivered > 1 {
		log = log.With("delivery", meta.NumDelivered)
	}

	if err := h(logger.With(ctx, log), b); err != nil {
		log.Error("batch failed, will redeliver", "err", err)
		_ = m.NakWithDelay(nakDelay)
		metrics.QueueDeliveries.WithLabelValues("nak").Inc()
		return
	}
	if err := m.Ack(); err != nil {
		// The result is durable; a redelivery is absorbed by batch idempotency.
		log.Warn("ack failed", "err", err)
		metrics.QueueDeliveries.WithLabelValues("ack_error").Inc()
		return
	}
	metrics.QueueDeliveries.WithLabelValues("ack").Inc()
}

func (q *JetStream) Close() {
	if q.conn != nil {
		q.conn.Drain()
	}
}
