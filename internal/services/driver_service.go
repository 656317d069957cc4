package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tourbackend/internal/auth"
	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/repositories"
	"tourbackend/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const driverTokenTTL = 12 * time.Hour

// DriverService manages the accounts used by the boarding scanner app.
type DriverService struct {
	Drivers   repositories.DriverRepository
	JWTSecret string
	HashCost  int
	Now       func() time.Time
}

type DriverLoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Driver    models.DriverView `json:"driver"`
}

func (s DriverService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

const maxPasswordBytes = 72

func (s DriverService) cost() int {
	if s.HashCost > 0 {
		return s.HashCost
	}
	return bcrypt.DefaultCost
}

func (s DriverService) Register(ctx context.Context, in models.DriverRegisterInput) (models.DriverView, error) {
	name := utils.NormalizeSpace(in.Name)
	email := utils.NormalizeEmail(in.Email)
	if name == "" {
		return models.DriverView{}, domain.ValidationError{Field: "name", Msg: "name is required"}
	}
	if email == "" {
		return models.DriverView{}, domain.ValidationError{Field: "email", Msg: "email is required"}
	}
	if len(in.Password) < 8 {
		return models.DriverView{}, domain.ValidationError{Field: "password", Msg: "must be at least 8 characters"}
	}
	// bcrypt only hashes the first 72 bytes and refuses longer input.
	if len(in.Password) > maxPasswordBytes {
		return models.DriverView{}, domain.ValidationError{Field: "password", Msg: "must be at most 72 bytes"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return models.DriverView{}, domain.InternalError{Msg: "hash password", Err: err}
	}
	d := models.Driver{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Phone:        utils.NormalizeSpace(in.Phone),
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    s.now(),
	}
	if err := s.Drivers.Create(ctx, d); err != nil {
		return models.DriverView{}, err
	}
	utils.LogCtx(ctx, "driver", "register", "driver_id="+d.ID)
	return d.View(), nil
}

// Login checks the password and issues a driver token. Unknown email, wrong
// password and inactive accounts all get the same answer.
func (s DriverService) Login(ctx context.Context, in models.DriverLoginInput) (DriverLoginResult, error) {
	if s.JWTSecret == "" {
		return DriverLoginResult{}, domain.InternalError{Msg: "driver login is not configured", Err: auth.ErrNoSecret}
	}
	invalid := domain.UnauthorizedError{Msg: "invalid email or password"}

	d, err := s.Drivers.GetByEmail(ctx, in.Email)
	if domain.IsNotFound(err) {
		return DriverLoginResult{}, invalid
	}
	if err != nil {
		return DriverLoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(in.Password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			utils.LogCtx(ctx, "driver", "hash_error", fmt.Sprintf("driver_id=%s err=%v", d.ID, err))
		}
		return DriverLoginResult{}, invalid
	}
	if !d.Active {
		utils.LogCtx(ctx, "driver", "login_inactive", "driver_id="+d.ID)
		return DriverLoginResult{}, invalid
	}

	now := s.now()
	token, err := auth.Sign(s.JWTSecret, domain.RoleDriver, d.ID, d.Email, driverTokenTTL, now)
	if err != nil {
		return DriverLoginResult{}, domain.InternalError{Msg: "sign token", Err: err}
	}
	utils.LogCtx(ctx, "driver", "login", "driver_id="+d.ID)
	return DriverLoginResult{Token: token, ExpiresAt: now.Add(driverTokenTTL), Driver: d.View()}, nil
}

func (s DriverService) List(ctx context.Context) ([]models.DriverView, error) {
	drivers, err := s.Drivers.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].Name < drivers[j].Name })
	out := make([]models.DriverView, len(drivers))
	for i, d := range drivers {
		out[i] = d.View()
	}
	return out, nil
}

// Deactivate disables a driver. Tokens already issued stay valid until they
// expire; the check-in path re-reads the driver.
func (s DriverService) Deactivate(ctx context.Context, id string) (models.DriverView, error) {
	d, err := s.Drivers.GetByID(ctx, id)
	if err != nil {
		return models.DriverView{}, err
	}
	if d.Active {
		d.Active = false
		if err := s.Drivers.Update(ctx, d); err != nil {
			return models.DriverView{}, err
		}
		utils.LogCtx(ctx, "driver", "deactivate", "driver_id="+d.ID)
	}
	return d.View(), nil
}

// ActiveDriver returns the driver behind a token subject, rejecting disabled
// accounts.
func (s DriverService) ActiveDriver(ctx context.Context, id string) (models.Driver, error) {
	d, err := s.Drivers.GetByID(ctx, id)
	if domain.IsNotFound(err) {
		return models.Driver{}, domain.UnauthorizedError{Msg: "driver account not found"}
	}
	if err != nil {
		return models.Driver{}, err
	}
	if !d.Active {
		return models.Driver{}, domain.UnauthorizedError{Msg: "driver account is disabled"}
	}
	return d, nil
}
