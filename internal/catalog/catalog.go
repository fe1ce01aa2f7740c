// Package catalog serves the static list of counselling services.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/anonto42/career-hub/backend/internal/apperr"
	"github.com/anonto42/career-hub/backend/internal/models"
)

// Catalog is read once and never changes afterwards.
type Catalog struct {
	services []models.Service
}

// Load reads the catalog file at path.
func Load(path string) (*Catalog, error) {
	const op = "catalog/Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	return c, nil
}

// Decode reads a JSON array of services. Entries without an id are rejected.
func Decode(r io.Reader) (*Catalog, error) {
	var services []models.Service
	if err := json.NewDecoder(r).Decode(&services); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(services))
	for i, s := range services {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("entry %d: %w", i, apperr.Required("id"))
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	return &Catalog{services: services}, nil
}

// All returns every service in file order.
func (c *Catalog) All() []models.Service {
	return append([]models.Service(nil), c.services...)
}

// FindByID is a linear lookup.
func (c *Catalog) FindByID(id string) (models.Service, error) {
	for _, s := range c.services {
		if s.ID == id {
			return s, nil
		}
	}
	return models.Service{}, fmt.Errorf("catalog/FindByID: service %s: %w", id, apperr.ErrNotFound)
}
