package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// LastBarRepo keeps the latest bar of each symbol under its own key, so a
// TTL only ever applies to the bar that was written.
type LastBarRepo struct {
	rdb       *redis.Client
	ttl       time.Duration // 0 keeps bars forever
	keyPrefix string        // prefix + ":lastbar:"
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *LastBarRepo {
	if prefix == "" {
		prefix = "chartfeed"
	}
	return &LastBarRepo{
		rdb:       rdb,
		ttl:       ttl,
		keyPrefix: prefix + ":lastbar:",
	}
}

// Key returns the key holding the bar of fullName.
func (r *LastBarRepo) Key(fullName string) string { return r.keyPrefix + fullName }

func (r *LastBarRepo) Set(ctx context.Context, fullName string, bar model.Bar) error {
	b, err := json.Marshal(bar)
	if err != nil {
		return err
	}

	// "chartfeed:lastbar:Binance:BTC/USDT" -> json
	if err := r.rdb.Set(ctx, r.Key(fullName), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set last bar %s: %w", fullName, err)
	}
	return nil
}

func (r *LastBarRepo) Get(ctx context.Context, fullName string) (model.Bar, bool, error) {
	raw, err := r.rdb.Get(ctx, r.Key(fullName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Bar{}, false, nil
		}
		return model.Bar{}, false, fmt.Errorf("redis get last bar %s: %w", fullName, err)
	}

	var bar model.Bar
	if err := json.Unmarshal(raw, &bar); err != nil {
		return model.Bar{}, false, fmt.Errorf("decode last bar %s: %w", fullName, err)
	}
	return bar, true, nil
}

var _ port.LastBarStore = (*LastBarRepo)(nil)
