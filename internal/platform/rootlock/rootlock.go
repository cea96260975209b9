// Package rootlock provides advisory locks over root keys, used to keep two
// cascades from walking the same dependents at once.
package rootlock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotAcquired is returned when a key stays held past the wait budget.
var ErrNotAcquired = errors.New("rootlock: lock not acquired")

const pollInterval = 25 * time.Millisecond

// Locker acquires every key or none of them.
type Locker interface {
	// Acquire blocks up to the locker's wait budget. The returned release
	// func drops every key; it is safe to call more than once.
	Acquire(ctx context.Context, keys ...string) (release func(context.Context) error, err error)
}

type backend interface {
	try(ctx context.Context, key, token string) (bool, error)
	drop(ctx context.Context, key, token string) error
}

// renewer is implemented by backends whose keys expire. Held keys are
// extended every renewInterval until released.
type renewer interface {
	extend(ctx context.Context, key, token string) (bool, error)
	renewInterval() time.Duration
}

// normalize sorts and dedups keys so concurrent callers lock in the same order.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func acquireAll(ctx context.Context, b backend, keys []string, token string, wait time.Duration) (func(context.Context) error, error) {
	keys = normalize(keys)
	held := make([]string, 0, len(keys))
	releaseHeld := func(ctx context.Context) error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			if err := b.drop(ctx, held[i], token); err != nil {
				errs = append(errs, err)
			}
		}
		held = held[:0]
		return errors.Join(errs...)
	}
	deadline := time.Now().Add(wait)
	for _, key := range keys {
		for {
			ok, err := b.try(ctx, key, token)
			if err != nil {
				_ = releaseHeld(context.WithoutCancel(ctx))
				return nil, err
			}
			if ok {
				held = append(held, key)
				break
			}
			if !time.Now().Before(deadline) {
				_ = releaseHeld(context.WithoutCancel(ctx))
				return nil, ErrNotAcquired
			}
			select {
			case <-ctx.Done():
				_ = releaseHeld(context.WithoutCancel(ctx))
				return nil, ctx.Err()
			case <-time.After(pollInterval):
			}
		}
	}
	r, ok := b.(renewer)
	if !ok || r.renewInterval() <= 0 || len(held) == 0 {
		return releaseHeld, nil
	}
	stop := renew(context.WithoutCancel(ctx), r, append([]string(nil), held...), token)
	return func(ctx context.Context) error {
		stop()
		return releaseHeld(ctx)
	}, nil
}

// renew extends keys until the returned stop func is called. stop waits for
// the renewal loop to exit and may be called more than once.
func renew(ctx context.Context, r renewer, keys []string, token string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.renewInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for _, key := range keys {
				// A lost key is reported by the backend; the rest stay renewed.
				_, _ = r.extend(ctx, key, token)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
