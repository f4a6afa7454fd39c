package onboarding_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradesim/src/model"
	"tradesim/src/onboarding"
	"tradesim/src/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in memory db: %v", err)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.User{}, &model.Wallet{}); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}

	return db
}

func TestRegisterCreatesUserAndWallet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := onboarding.NewService(db)

	user, err := svc.Register(ctx, onboarding.RegisterParams{
		Email:    "Trader@Test.Local",
		Password: "supersecret",
		FullName: "Test Trader",
	})
	require.NoError(t, err)

	require.Equal(t, "trader@test.local", user.Email, "email normalized")
	require.Equal(t, model.RoleTrader, user.Role, "role defaults to trader")
	require.Equal(t, model.RiskProfileModerate, user.RiskProfile)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("supersecret")))

	wallet, err := repository.NewWalletRepository().WithDB(db).GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, wallet)
	require.True(t, wallet.Balance.Equal(model.StartingBalance), "balance %s", wallet.Balance)
	require.True(t, wallet.Equity.Equal(model.StartingBalance), "equity %s", wallet.Equity)
	require.True(t, wallet.MarginUsed.IsZero())
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := onboarding.NewService(newTestDB(t))

	tests := []struct {
		name   string
		params onboarding.RegisterParams
		want   error
	}{
		{
			name:   "bad email",
			params: onboarding.RegisterParams{Email: "nope", Password: "supersecret"},
			want:   onboarding.ErrInvalidEmail,
		},
		{
			name:   "short password",
			params: onboarding.RegisterParams{Email: "a@b.c", Password: "short"},
			want:   onboarding.ErrInvalidPassword,
		},
		{
			name:   "bad role",
			params: onboarding.RegisterParams{Email: "a@b.c", Password: "supersecret", Role: "root"},
			want:   onboarding.ErrInvalidRole,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.params)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := onboarding.NewService(newTestDB(t))

	_, err := svc.Register(ctx, onboarding.RegisterParams{Email: "dup@test.local", Password: "supersecret"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, onboarding.RegisterParams{Email: "DUP@test.local", Password: "supersecret"})
	require.ErrorIs(t, err, onboarding.ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := onboarding.NewService(newTestDB(t))

	_, err := svc.Register(ctx, onboarding.RegisterParams{Email: "auth@test.local", Password: "supersecret"})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "auth@test.local", "supersecret")
	require.NoError(t, err)
	require.Equal(t, "auth@test.local", user.Email)

	_, err = svc.Authenticate(ctx, "auth@test.local", "wrongpass")
	require.Error(t, err)

	_, err = svc.Authenticate(ctx, "missing@test.local", "supersecret")
	require.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := onboarding.NewService(newTestDB(t))

	user, err := svc.Register(ctx, onboarding.RegisterParams{Email: "pw@test.local", Password: "supersecret"})
	require.NoError(t, err)

	require.Error(t, svc.ChangePassword(ctx, user, "wrong", "newpassword"))
	require.NoError(t, svc.ChangePassword(ctx, user, "supersecret", "newpassword"))

	_, err = svc.Authenticate(ctx, "pw@test.local", "newpassword")
	require.NoError(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := onboarding.NewService(db)

	require.NoError(t, svc.Seed(ctx))
	require.NoError(t, svc.Seed(ctx), "second seed run must not fail")

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	require.EqualValues(t, 4, count)

	manager, err := repository.NewUserRepository().WithDB(db).FindByEmail(ctx, "manager@tradesim.local")
	require.NoError(t, err)
	require.NotNil(t, manager)

	alice, err := repository.NewUserRepository().WithDB(db).FindByEmail(ctx, "alice@tradesim.local")
	require.NoError(t, err)
	require.NotNil(t, alice)
	require.NotNil(t, alice.ManagerID)
	require.Equal(t, manager.ID, *alice.ManagerID)
}
