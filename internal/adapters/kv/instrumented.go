package kv

import (
	"context"
	"errors"

	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

// Instrumented counts backend failures per operation. A missing key is not a failure.
type Instrumented struct {
	Store
	backend string
}

// Instrument wraps s so that its errors show up in the kv error metric.
func Instrument(s Store, backend string) *Instrumented {
	return &Instrumented{Store: s, backend: backend}
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := i.Store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordKVError(i.backend, "get")
	}
	return v, err
}

func (i *Instrumented) Set(ctx context.Context, key string, value []byte) error {
	err := i.Store.Set(ctx, key, value)
	if err != nil {
		metrics.RecordKVError(i.backend, "set")
	}
	return err
}

func (i *Instrumented) Remove(ctx context.Context, key string) error {
	err := i.Store.Remove(ctx, key)
	if err != nil {
		metrics.RecordKVError(i.backend, "remove")
	}
	return err
}
