package utils

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTakeRateSlot_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	if _, err := TakeRateSlot(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected nil client error")
	}
}

func TestTakeRateSlot_SharedWindow(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := OpenRedis(ctx, RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	defer rdb.Close()

	key := "test:rate:" + uuid.NewString()
	wait, err := TakeRateSlot(ctx, rdb, key, 1, 2*time.Second)
	if err != nil {
		t.Fatalf("first take: %v", err)
	}
	if wait != 0 {
		t.Fatalf("expected first slot, got wait %s", wait)
	}
	wait, err = TakeRateSlot(ctx, rdb, key, 1, 2*time.Second)
	if err != nil {
		t.Fatalf("second take: %v", err)
	}
	if wait <= 0 {
		t.Fatalf("expected a wait for the second slot")
	}
}
