package identity

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("identity not found")

// Person is a known speaker identity.
type Person struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Position       string `json:"position,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// Map renders p as the speaker_info object of an analysis.
func (p Person) Map() map[string]any {
	m := map[string]any{"id": p.ID, "name": p.Name}
	if p.Position != "" {
		m["position"] = p.Position
	}
	if p.OrganizationID != "" {
		m["organization_id"] = p.OrganizationID
	}
	return m
}

// Repository is the identity database used for speaker lookup and
// enrollment. Lookup returns ErrNotFound for unknown ids.
type Repository interface {
	Lookup(ctx context.Context, id string) (Person, error)
	Search(ctx context.Context, query string, limit int) ([]Person, error)
	Insert(ctx context.Context, p Person) (Person, error)
}

// Info resolves id to a speaker_info map; unknown ids and lookup errors
// both yield an empty map, the error is returned for logging.
func Info(ctx context.Context, r Repository, id string) (map[string]any, error) {
	if r == nil || id == "" {
		return map[string]any{}, nil
	}
	p, err := r.Lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return map[string]any{}, err
	}
	return p.Map(), nil
}
