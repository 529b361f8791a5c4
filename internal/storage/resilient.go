package storage

import (
	"context"
	"errors"
	"sync/atomic"

	"leetee/internal/logger"
)

// Resilient wraps a primary KV. Every value read or written is mirrored in
// memory; after the first primary failure the wrapper logs once and serves
// the rest of the process from the mirror.
type Resilient struct {
	primary  KV
	mirror   *Memory
	log      *logger.Logger
	degraded atomic.Bool
}

func NewResilient(primary KV, log *logger.Logger) *Resilient {
	return &Resilient{
		primary: primary,
		mirror:  NewMemory(),
		log:     logger.OrNop(log).With("component", "storage"),
	}
}

// Degraded reports whether the primary store has been abandoned.
func (r *Resilient) Degraded() bool {
	return r.degraded.Load()
}

// callerGone reports whether err comes from the caller's context rather
// than the primary store. Such errors never degrade the wrapper.
func callerGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Resilient) fail(op, key string, err error) {
	if r.degraded.CompareAndSwap(false, true) {
		r.log.Error("storage unavailable, continuing in memory", "op", op, "key", key, "error", err)
	}
}

func (r *Resilient) Get(ctx context.Context, key string) (string, error) {
	if r.Degraded() {
		return r.mirror.Get(ctx, key)
	}
	v, err := r.primary.Get(ctx, key)
	switch {
	case err == nil:
		_ = r.mirror.Set(ctx, key, v)
		return v, nil
	case errors.Is(err, ErrNotFound):
		return "", ErrNotFound
	case callerGone(ctx, err):
		return "", err
	default:
		r.fail("get", key, err)
		return r.mirror.Get(ctx, key)
	}
}

func (r *Resilient) Set(ctx context.Context, key, value string) error {
	_ = r.mirror.Set(ctx, key, value)
	if r.Degraded() {
		return nil
	}
	if err := r.primary.Set(ctx, key, value); err != nil {
		if callerGone(ctx, err) {
			return err
		}
		r.fail("set", key, err)
	}
	return nil
}

func (r *Resilient) Delete(ctx context.Context, key string) error {
	_ = r.mirror.Delete(ctx, key)
	if r.Degraded() {
		return nil
	}
	if err := r.primary.Delete(ctx, key); err != nil {
		if callerGone(ctx, err) {
			return err
		}
		r.fail("delete", key, err)
	}
	return nil
}

func (r *Resilient) Keys(ctx context.Context, prefix string) ([]string, error) {
	if r.Degraded() {
		return r.mirror.Keys(ctx, prefix)
	}
	keys, err := r.primary.Keys(ctx, prefix)
	if err != nil {
		if callerGone(ctx, err) {
			return nil, err
		}
		r.fail("keys", prefix, err)
		return r.mirror.Keys(ctx, prefix)
	}
	return keys, nil
}

func (r *Resilient) Close() error {
	return r.primary.Close()
}
