package cache

import (
	"context"
	"sync"
	"time"
)

// MemPresence is the single-node presence store backed by sync.Map.
// Entries expire after the configured TTL unless refreshed; a background
// cleanup goroutine runs when NewMemPresence is given a positive
// cleanupInterval.
type MemPresence struct {
	entries sync.Map // userId -> unix-nano expiry
	ttl     time.Duration
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewMemPresence(ttl, cleanupInterval time.Duration) *MemPresence {
	m := &MemPresence{
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		m.wg.Add(1)
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			defer m.wg.Done()
			for {
				select {
				case <-ticker.C:
					m.cleanup()
				case <-m.stop:
					return
				}
			}
		}()
	}
	return m
}

func (m *MemPresence) Set(_ context.Context, userId string) error {
	var exp int64
	if m.ttl > 0 {
		exp = time.Now().Add(m.ttl).UnixNano()
	}
	m.entries.Store(userId, exp)
	return nil
}

func (m *MemPresence) Clear(_ context.Context, userId string) error {
	m.entries.Delete(userId)
	return nil
}

func (m *MemPresence) IsOnline(_ context.Context, userId string) (bool, error) {
	v, ok := m.entries.Load(userId)
	if !ok {
		return false, nil
	}
	if expired(v.(int64)) {
		m.entries.Delete(userId)
		return false, nil
	}
	return true, nil
}

func (m *MemPresence) Close() {
	m.once.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
}

func (m *MemPresence) cleanup() {
	m.entries.Range(func(k, v any) bool {
		if expired(v.(int64)) {
			m.entries.Delete(k)
		}
		return true
	})
}

func expired(exp int64) bool {
	return exp != 0 && time.Now().UnixNano() > exp
}
