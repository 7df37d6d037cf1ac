package redis

import (
	"context"
	"fmt"
	"time"
)

// CooldownStore deduplicates alerts across restarts and instances: each alert
// key records its last firing with an explicit TTL, replacing the in-process
// cooldown map such a monitor would otherwise keep.
type CooldownStore struct {
	client *Client
}

// NewCooldownStore creates a cooldown store on an existing client.
func NewCooldownStore(client *Client) *CooldownStore {
	return &CooldownStore{client: client}
}

func cooldownKey(alert string) string {
	return fmt.Sprintf("payguard:cooldown:%s", alert)
}

// ShouldFire reports whether the alert is outside its cooldown window and,
// if so, atomically starts a new window. Only one caller across all
// instances wins per window.
func (s *CooldownStore) ShouldFire(ctx context.Context, alert string, cooldown time.Duration) (bool, error) {
	ok, err := s.client.rdb.SetNX(ctx, cooldownKey(alert), time.Now().UTC().Format(time.RFC3339), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown setnx failed: %w", err)
	}
	return ok, nil
}

// Clear removes an alert's cooldown so the next evaluation may fire again,
// used when the underlying condition has recovered.
func (s *CooldownStore) Clear(ctx context.Context, alert string) error {
	return s.client.rdb.Del(ctx, cooldownKey(alert)).Err()
}
