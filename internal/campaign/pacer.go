package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"switchboard/pkg/utils"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Pacer spaces sends per sending number. The local limiter bounds one
// worker; the optional redis window bounds all workers sharing the number.
type Pacer struct {
	interval time.Duration
	rdb      redis.Scripter

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPacer returns a pacer allowing one send per interval per number.
// rdb may be nil to pace locally only.
func NewPacer(interval time.Duration, rdb redis.Scripter) *Pacer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Pacer{interval: interval, rdb: rdb, limiters: map[string]*rate.Limiter{}}
}

func (p *Pacer) limiter(from string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[from]
	if !ok {
		l = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[from] = l
	}
	return l
}

// Wait blocks until a send from this number is allowed or ctx ends.
func (p *Pacer) Wait(ctx context.Context, from string) error {
	if err := p.limiter(from).Wait(ctx); err != nil {
		return err
	}
	if p.rdb == nil {
		return nil
	}
	for {
		wait, err := utils.TakeRateSlot(ctx, p.rdb, "sendrate:"+from, 1, p.interval)
		if err != nil {
			return fmt.Errorf("shared send pacing: %w", err)
		}
		if wait == 0 {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
