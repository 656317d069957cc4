package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"tourbackend/internal/auth"
	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/kv"
	"tourbackend/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDriverService() DriverService {
	return DriverService{
		Drivers:   repositories.DriverRepository{Store: kv.NewMemoryStore()},
		JWTSecret: "test-secret",
		HashCost:  bcrypt.MinCost,
		Now:       fixedClock(travelDay),
	}
}

func TestDriverRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	svc := newDriverService()
	svc.Now = fixedClock(now)

	view, err := svc.Register(ctx, models.DriverRegisterInput{Name: " Rui  Lopes ", Email: "Rui@Example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "Rui Lopes", view.Name)
	assert.Equal(t, "rui@example.com", view.Email)
	assert.True(t, view.Active)

	stored, err := svc.Drivers.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", stored.PasswordHash)

	res, err := svc.Login(ctx, models.DriverLoginInput{Email: "RUI@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, view.ID, res.Driver.ID)
	assert.Equal(t, now.Add(12*time.Hour), res.ExpiresAt)

	claims, err := auth.Parse("test-secret", res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDriver, claims.Role)
	assert.Equal(t, view.ID, claims.Subject)
	assert.Equal(t, "rui@example.com", claims.Email)
}

func TestDriverRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newDriverService()
	_, err := svc.Register(ctx, models.DriverRegisterInput{Name: "A", Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, models.DriverRegisterInput{Name: "B", Email: "A@EXAMPLE.COM", Password: "password2"})
	var conflict domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email_taken", conflict.Code)
}

func TestDriverRegisterValidation(t *testing.T) {
	svc := newDriverService()
	_, err := svc.Register(context.Background(), models.DriverRegisterInput{Name: "A", Email: "a@example.com", Password: "short"})
	assert.True(t, domain.IsValidation(err))
	_, err = svc.Register(context.Background(), models.DriverRegisterInput{Name: " ", Email: "a@example.com", Password: "longenough"})
	assert.True(t, domain.IsValidation(err))
	_, err = svc.Register(context.Background(), models.DriverRegisterInput{Name: "A", Email: "a@example.com", Password: strings.Repeat("p", 80)})
	assert.True(t, domain.IsValidation(err))
}

func TestDriverLoginFailures(t *testing.T) {
	ctx := context.Background()
	svc := newDriverService()
	view, err := svc.Register(ctx, models.DriverRegisterInput{Name: "A", Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, models.DriverLoginInput{Email: "a@example.com", Password: "wrong-pass"})
	assert.True(t, domain.IsUnauthorized(err))

	_, err = svc.Login(ctx, models.DriverLoginInput{Email: "nobody@example.com", Password: "password1"})
	assert.True(t, domain.IsUnauthorized(err))

	_, err = svc.Deactivate(ctx, view.ID)
	require.NoError(t, err)
	_, err = svc.Login(ctx, models.DriverLoginInput{Email: "a@example.com", Password: "password1"})
	assert.True(t, domain.IsUnauthorized(err))

	_, err = svc.ActiveDriver(ctx, view.ID)
	assert.True(t, domain.IsUnauthorized(err))

	noSecret := svc
	noSecret.JWTSecret = ""
	_, err = noSecret.Login(ctx, models.DriverLoginInput{Email: "a@example.com", Password: "password1"})
	assert.True(t, domain.IsInternal(err))
}

func TestDriverListAndDeactivate(t *testing.T) {
	ctx := context.Background()
	svc := newDriverService()
	for _, name := range []string{"Zé", "Ana"} {
		_, err := svc.Register(ctx, models.DriverRegisterInput{Name: name, Email: name + "@example.com", Password: "password1"})
		require.NoError(t, err)
	}
	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].Name)

	_, err = svc.Deactivate(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))

	view, err := svc.Deactivate(ctx, list[1].ID)
	require.NoError(t, err)
	assert.False(t, view.Active)
}
