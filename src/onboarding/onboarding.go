// Package onboarding creates trading accounts: a user row, a bcrypt
// password hash and a wallet funded with the platform's starting balance.
package onboarding

import (
	"context"
	"errors"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"tradesim/src/model"
	"tradesim/src/repository"
)

var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidPassword = errors.New("password must be at least 8 characters")
	ErrInvalidRole     = errors.New("invalid role")
)

type Service struct {
	db    *gorm.DB
	users *repository.UserRepository
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:    db,
		users: repository.NewUserRepository().WithDB(db),
	}
}

type RegisterParams struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	Role        string `json:"role"`
	RiskProfile string `json:"risk_profile"`
	ManagerID   *uint  `json:"manager_id,omitempty"`
}

// Register creates the user and their wallet in one transaction. The wallet
// always starts at the platform balance; there is no deposit path.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(params.Password) < 8 {
		return nil, ErrInvalidPassword
	}

	role := params.Role
	if role == "" {
		role = model.RoleTrader
	}
	switch role {
	case model.RoleSuperadmin, model.RoleAdmin, model.RoleManager, model.RoleTrader:
	default:
		return nil, ErrInvalidRole
	}

	riskProfile := params.RiskProfile
	if riskProfile == "" {
		riskProfile = model.RiskProfileModerate
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(params.FullName),
		Role:         role,
		RiskProfile:  riskProfile,
		IsActive:     true,
		ManagerID:    params.ManagerID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(model.NewWallet(user.ID)).Error
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
	}).Info("User registered")

	return user, nil
}

// Authenticate checks email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}
	return user, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, user *model.User, current, next string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return errors.New("current password mismatch")
	}
	if len(next) < 8 {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hash)
	return s.users.Save(ctx, user)
}

// Seed creates a demo account set for local environments: one admin, one
// manager and two traders under that manager. Existing accounts are left
// alone, so seeding is idempotent.
func (s *Service) Seed(ctx context.Context) error {
	if _, err := s.registerIgnoringDuplicates(ctx, RegisterParams{
		Email: "admin@tradesim.local", Password: "admin12345",
		FullName: "Platform Admin", Role: model.RoleAdmin,
	}); err != nil {
		return err
	}

	manager, err := s.registerIgnoringDuplicates(ctx, RegisterParams{
		Email: "manager@tradesim.local", Password: "manager12345",
		FullName: "Demo Manager", Role: model.RoleManager,
	})
	if err != nil {
		return err
	}

	traders := []RegisterParams{
		{Email: "alice@tradesim.local", Password: "trader12345", FullName: "Alice Trader", RiskProfile: model.RiskProfileConservative},
		{Email: "bob@tradesim.local", Password: "trader12345", FullName: "Bob Trader", RiskProfile: model.RiskProfileAggressive},
	}
	for _, params := range traders {
		if manager != nil {
			params.ManagerID = &manager.ID
		}
		if _, err := s.registerIgnoringDuplicates(ctx, params); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) registerIgnoringDuplicates(ctx context.Context, params RegisterParams) (*model.User, error) {
	user, err := s.Register(ctx, params)
	if errors.Is(err, ErrEmailTaken) {
		return s.users.FindByEmail(ctx, params.Email)
	}
	return user, err
}
