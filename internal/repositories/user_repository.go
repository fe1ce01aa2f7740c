package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anonto42/career-hub/backend/internal/models"
)

// UserRepository defines the user operations backed by PostgreSQL
type UserRepository interface {
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
	FetchRole(ctx context.Context, firebaseUID string) (models.Role, bool, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Migrate creates or updates the users table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{})
}

// GetUserByFirebaseUID retrieves a user by Firebase UID from PostgreSQL
func (r *PostgresUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertUser inserts the user or refreshes name and email of the row with
// the same Firebase UID. The role column is never touched here.
func (r *PostgresUserRepository) UpsertUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "firebase_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "updated_at"}),
	}).Create(user).Error
}

// FetchRole implements session.RoleSource on the role column.
func (r *PostgresUserRepository) FetchRole(ctx context.Context, firebaseUID string) (models.Role, bool, error) {
	user, err := r.GetUserByFirebaseUID(ctx, firebaseUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoleNone, false, nil
		}
		return models.RoleNone, false, fmt.Errorf("repositories/FetchRole: %w", err)
	}
	if user.Role == "" {
		return models.RoleUser, true, nil
	}
	return models.Role(user.Role), true, nil
}
