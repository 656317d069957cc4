package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tourbackend/internal/kv"
)

func getJSON[T any](ctx context.Context, store kv.Store, key string) (T, error) {
	var out T
	raw, err := store.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func putJSON(ctx context.Context, store kv.Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(ctx, key, raw)
}

func isNotFound(err error) bool {
	return errors.Is(err, kv.ErrNotFound)
}
