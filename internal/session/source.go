package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/store"
)

// StoreRoleSource reads users/{uid} from the document store.
type StoreRoleSource struct {
	store store.DocumentStore
}

// NewStoreRoleSource creates a role source over st.
func NewStoreRoleSource(st store.DocumentStore) *StoreRoleSource {
	return &StoreRoleSource{store: st}
}

// FetchRole implements RoleSource.
func (s *StoreRoleSource) FetchRole(ctx context.Context, uid string) (models.Role, bool, error) {
	doc, err := s.store.Get(ctx, store.Doc(models.UsersCollection, uid))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.RoleNone, false, nil
		}
		return models.RoleNone, false, fmt.Errorf("session/FetchRole: %w", err)
	}

	role, err := models.DecodeRoleRecord(doc)
	if err != nil {
		return models.RoleNone, true, fmt.Errorf("session/FetchRole: %w", err)
	}
	return role, true, nil
}
