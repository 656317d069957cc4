package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/kv"
	"tourbackend/internal/utils"
)

const (
	bookingKeyPrefix = "booking:"
	currentPrefixKey = "booking_current_prefix"
)

func BookingKey(id string) string { return bookingKeyPrefix + id }

type BookingRepository struct {
	Store kv.Store
}

func (r BookingRepository) GetByID(ctx context.Context, id string) (models.Booking, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return models.Booking{}, domain.ValidationError{Field: "id", Msg: "booking id is required"}
	}
	b, err := getJSON[models.Booking](ctx, r.Store, BookingKey(id))
	if isNotFound(err) {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id, Err: err}
	}
	return b, err
}

func (r BookingRepository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.Store.Get(ctx, BookingKey(id))
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert stores b only when its id is still free and reports whether it did.
func (r BookingRepository) Insert(ctx context.Context, b models.Booking) (bool, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("encode booking: %w", err)
	}
	return r.Store.SetIfAbsent(ctx, BookingKey(b.ID), raw)
}

func (r BookingRepository) Update(ctx context.Context, b models.Booking) error {
	return putJSON(ctx, r.Store, BookingKey(b.ID), b)
}

// List returns every booking; undecodable records are logged and skipped.
func (r BookingRepository) List(ctx context.Context) ([]models.Booking, error) {
	entries, err := r.Store.GetByPrefix(ctx, bookingKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.Booking, 0, len(entries))
	for _, e := range entries {
		var b models.Booking
		if err := json.Unmarshal(e.Value, &b); err != nil {
			utils.LogCtx(ctx, "booking", "list_skip", fmt.Sprintf("key=%s err=%v", e.Key, err))
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r BookingRepository) DeleteMany(ctx context.Context, ids []string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookingKey(id)
	}
	return r.Store.MDel(ctx, keys)
}

// IDsWithPrefix lists booking ids of the form "<prefix>-NNNN".
func (r BookingRepository) IDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys, err := r.Store.KeysByPrefix(ctx, BookingKey(prefix+"-"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, bookingKeyPrefix)
	}
	return ids, nil
}

func (r BookingRepository) Count(ctx context.Context) (int, error) {
	keys, err := r.Store.KeysByPrefix(ctx, bookingKeyPrefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// CurrentPrefix reads the active allocation prefix, seeding it with initial
// when the row does not exist yet.
func (r BookingRepository) CurrentPrefix(ctx context.Context, initial string) (string, error) {
	p, err := getJSON[string](ctx, r.Store, currentPrefixKey)
	if err == nil && p != "" {
		return p, nil
	}
	if err != nil && !isNotFound(err) {
		return "", err
	}
	raw, _ := json.Marshal(initial)
	if _, err := r.Store.SetIfAbsent(ctx, currentPrefixKey, raw); err != nil {
		return "", err
	}
	return getJSON[string](ctx, r.Store, currentPrefixKey)
}

// PeekPrefix reads the active prefix without seeding it; "" means no
// booking id has been allocated yet.
func (r BookingRepository) PeekPrefix(ctx context.Context) (string, error) {
	p, err := getJSON[string](ctx, r.Store, currentPrefixKey)
	if isNotFound(err) {
		return "", nil
	}
	return p, err
}

// SwapPrefix advances the prefix from old to next only if no other writer
// changed it in between.
func (r BookingRepository) SwapPrefix(ctx context.Context, old, next string) (bool, error) {
	oldRaw, _ := json.Marshal(old)
	nextRaw, _ := json.Marshal(next)
	return r.Store.CompareAndSwap(ctx, currentPrefixKey, oldRaw, nextRaw)
}

// GetWithVersion returns the booking together with its stored bytes, which
// ReplaceIfUnchanged uses as the expected version.
func (r BookingRepository) GetWithVersion(ctx context.Context, id string) (models.Booking, []byte, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	raw, err := r.Store.Get(ctx, BookingKey(id))
	if isNotFound(err) {
		return models.Booking{}, nil, domain.NotFoundError{Resource: "booking", ID: id, Err: err}
	}
	if err != nil {
		return models.Booking{}, nil, err
	}
	var b models.Booking
	if err := json.Unmarshal(raw, &b); err != nil {
		return models.Booking{}, nil, fmt.Errorf("decode booking %s: %w", id, err)
	}
	return b, raw, nil
}

// ReplaceIfUnchanged writes b only while the stored record still equals
// version.
func (r BookingRepository) ReplaceIfUnchanged(ctx context.Context, b models.Booking, version []byte) (bool, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("encode booking: %w", err)
	}
	return r.Store.CompareAndSwap(ctx, BookingKey(b.ID), version, raw)
}
