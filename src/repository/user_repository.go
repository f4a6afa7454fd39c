package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradesim/src/database"
	"tradesim/src/model"
)

// UserRepository handles read/write operations for users.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository instance using the main read/write database.
func NewUserRepository() *UserRepository {
	logger.WithField("component", "UserRepository").
		Info("Creating new UserRepository with MainDB")

	return &UserRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *UserRepository) WithDB(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(
	ctx context.Context,
	user *model.User,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":  "UserRepository",
		"op":    "Create",
		"email": user.Email,
		"role":  user.Role,
	}).Debug("Creating new user")

	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID fetches a user by primary ID.
// Returns (nil, nil) if the user is not found.
func (r *UserRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.User, error) {

	var user model.User

	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch user by ID")

		return nil, err
	}

	return &user, nil
}

// Save persists all fields of an existing user.
func (r *UserRepository) Save(
	ctx context.Context,
	user *model.User,
) error {

	err := r.db.WithContext(ctx).Save(user).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "Save",
			"id":   user.ID,
		}).WithError(err).Error("Failed to save user")
	}

	return err
}

// FindByEmail fetches a user by email.
// Returns (nil, nil) if the user is not found.
func (r *UserRepository) FindByEmail(
	ctx context.Context,
	email string,
) (*model.User, error) {

	var user model.User

	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":  "UserRepository",
			"op":    "FindByEmail",
			"email": email,
		}).WithError(err).Error("Failed to fetch user by email")

		return nil, err
	}

	return &user, nil
}
