package cache

import (
	"context"
	"errors"
)

// ReplayCache remembers which order a checkout fingerprint produced, so replays
// can be answered without opening a transaction. It is a hint only; the
// in-transaction duplicate check stays authoritative.
type ReplayCache interface {
	Get(ctx context.Context, fingerprint string) (string, error)
	Set(ctx context.Context, fingerprint, orderID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, error) { return "", ErrCacheMiss }

func (Noop) Set(context.Context, string, string) error { return nil }
