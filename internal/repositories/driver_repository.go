package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/kv"
	"tourbackend/internal/utils"
)

const (
	driverKeyPrefix      = "driver:"
	driverEmailKeyPrefix = "driver_email:"
)

type DriverRepository struct {
	Store kv.Store
}

func (r DriverRepository) GetByID(ctx context.Context, id string) (models.Driver, error) {
	d, err := getJSON[models.Driver](ctx, r.Store, driverKeyPrefix+id)
	if isNotFound(err) {
		return models.Driver{}, domain.NotFoundError{Resource: "driver", ID: id, Err: err}
	}
	return d, err
}

func (r DriverRepository) GetByEmail(ctx context.Context, email string) (models.Driver, error) {
	id, err := getJSON[string](ctx, r.Store, driverEmailKeyPrefix+utils.NormalizeEmail(email))
	if isNotFound(err) {
		return models.Driver{}, domain.NotFoundError{Resource: "driver", Err: err}
	}
	if err != nil {
		return models.Driver{}, err
	}
	return r.GetByID(ctx, id)
}

// Create claims the email index first so two registrations with the same
// address cannot both succeed.
func (r DriverRepository) Create(ctx context.Context, d models.Driver) error {
	idRaw, _ := json.Marshal(d.ID)
	emailKey := driverEmailKeyPrefix + utils.NormalizeEmail(d.Email)
	ok, err := r.Store.SetIfAbsent(ctx, emailKey, idRaw)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ConflictError{Resource: "driver", Code: "email_taken", Msg: "email already registered"}
	}
	if err := putJSON(ctx, r.Store, driverKeyPrefix+d.ID, d); err != nil {
		_ = r.Store.Delete(ctx, emailKey)
		return err
	}
	return nil
}

func (r DriverRepository) Update(ctx context.Context, d models.Driver) error {
	return putJSON(ctx, r.Store, driverKeyPrefix+d.ID, d)
}

func (r DriverRepository) List(ctx context.Context) ([]models.Driver, error) {
	entries, err := r.Store.GetByPrefix(ctx, driverKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.Driver, 0, len(entries))
	for _, e := range entries {
		var d models.Driver
		if err := json.Unmarshal(e.Value, &d); err != nil {
			utils.LogCtx(ctx, "driver", "list_skip", fmt.Sprintf("key=%s err=%v", e.Key, err))
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
