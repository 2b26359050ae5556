// Package runlog keeps a record of finished imports in redis so the API can
// report on them.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chatarchive/internal/importer"
	"chatarchive/internal/redis"
)

const (
	keyLast    = "chatarchive:runs:last"
	keyHistory = "chatarchive:runs:history"
	historyMax = 50
)

// ErrNoRun is returned when no import has been recorded.
var ErrNoRun = errors.New("no import run recorded")

// Store reads and writes run records.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Save records res as the latest run and appends it to the history.
func (s *Store) Save(ctx context.Context, res *importer.Result) error {
	if res == nil {
		return errors.New("run result required")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if err := s.client.Set(ctx, keyLast, data, 0); err != nil {
		return fmt.Errorf("store last run: %w", err)
	}
	if err := s.client.PushCapped(ctx, keyHistory, data, historyMax); err != nil {
		return fmt.Errorf("store run history: %w", err)
	}
	return nil
}

// Last returns the most recent run.
func (s *Store) Last(ctx context.Context) (*importer.Result, error) {
	raw, err := s.client.Get(ctx, keyLast)
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, ErrNoRun
		}
		return nil, fmt.Errorf("load last run: %w", err)
	}
	var res importer.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decode last run: %w", err)
	}
	return &res, nil
}

// Recent returns up to n runs, newest first. Undecodable entries are skipped.
func (s *Store) Recent(ctx context.Context, n int) ([]importer.Result, error) {
	if n <= 0 {
		return nil, nil
	}
	raws, err := s.client.Range(ctx, keyHistory, 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("load run history: %w", err)
	}
	out := make([]importer.Result, 0, len(raws))
	for _, raw := range raws {
		var res importer.Result
		if json.Unmarshal([]byte(raw), &res) == nil {
			out = append(out, res)
		}
	}
	return out, nil
}
