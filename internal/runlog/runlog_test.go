package runlog

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"chatarchive/internal/config"
	"chatarchive/internal/importer"
	"chatarchive/internal/redis"
)

func TestStoreSaveAndLoad(t *testing.T) {
	store, cleanup := newRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.Last(ctx); !errors.Is(err, ErrNoRun) {
		t.Fatalf("expected ErrNoRun, got %v", err)
	}

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2"} {
		res := &importer.Result{
			RunID:      id,
			Archive:    "export.zip",
			StartedAt:  start.Add(time.Duration(i) * time.Minute),
			FinishedAt: start.Add(time.Duration(i)*time.Minute + time.Second),
			Stats:      importer.RunStats{Processed: 10 + i, NewMessages: 3},
		}
		if err := store.Save(ctx, res); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	last, err := store.Last(ctx)
	if err != nil {
		t.Fatalf("load last: %v", err)
	}
	if last.RunID != "run-2" || last.Stats.Processed != 11 {
		t.Fatalf("unexpected last run %+v", last)
	}

	recent, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("load recent: %v", err)
	}
	if len(recent) != 2 || recent[0].RunID != "run-2" || recent[1].RunID != "run-1" {
		t.Fatalf("unexpected history %+v", recent)
	}
}

func newRedisStore(t *testing.T) (*Store, func()) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed run log tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	cfg := &config.Config{Redis: config.RedisConfig{Host: host, Port: port, DB: db}}
	client, err := redis.NewRedisClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Del(ctx, keyLast, keyHistory); err != nil {
		t.Fatalf("reset keys: %v", err)
	}
	return NewStore(client), func() { client.Close() }
}
