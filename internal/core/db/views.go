package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/solatis/logview/internal/rules"
	"github.com/solatis/logview/internal/types"
)

// StoredView is a named view persisted in the views table. Document holds
// the view in its JSON wire format.
type StoredView struct {
	ID          types.ViewID `db:"view_id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Description string       `db:"description" json:"description"`
	Document    string       `db:"document" json:"-"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updatedAt"`
}

// View parses the stored document.
func (s *StoredView) View() (*rules.View, error) {
	v, err := rules.ParseView([]byte(s.Document))
	if err != nil {
		return nil, fmt.Errorf("stored view %q: %w", s.Name, err)
	}
	return v, nil
}

var viewNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateViewName checks that name can be used as a stored view name and
// in URL paths.
func ValidateViewName(name string) error {
	if name == "" || len(name) > types.MaxViewNameLength {
		return fmt.Errorf("%w: length must be 1-%d, got %d", types.ErrInvalidViewName, types.MaxViewNameLength, len(name))
	}
	if !viewNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q (letters, digits, '.', '_' and '-' only)", types.ErrInvalidViewName, name)
	}
	return nil
}

// ViewStore persists named views.
type ViewStore struct {
	q *Queries
}

// NewViewStore creates a view store over q.
func NewViewStore(q *Queries) *ViewStore {
	return &ViewStore{q: q}
}

func encodeView(view *rules.View) (string, error) {
	if err := rules.Validate(view); err != nil {
		return "", err
	}
	doc, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("failed to encode view: %w", err)
	}
	return string(doc), nil
}

// Create stores view under a new name. Returns types.ErrViewExists if the
// name is taken.
func (s *ViewStore) Create(ctx context.Context, name, description string, view *rules.View) (*StoredView, error) {
	if err := ValidateViewName(name); err != nil {
		return nil, err
	}
	doc, err := encodeView(view)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stored := &StoredView{
		ID:          types.NewViewID(),
		Name:        name,
		Description: description,
		Document:    doc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.q.ExecContext(ctx, "insert-view",
		string(stored.ID), stored.Name, stored.Description, stored.Document, stored.CreatedAt, stored.UpdatedAt)
	if err != nil {
		// The unique constraint on name is the arbiter; driver error types
		// differ, so confirm with a lookup.
		if _, getErr := s.Get(ctx, name); getErr == nil {
			return nil, fmt.Errorf("%w: %s", types.ErrViewExists, name)
		}
		return nil, fmt.Errorf("failed to insert view: %w", err)
	}
	return stored, nil
}

// Put creates the view or replaces the document and description of an
// existing one, keeping its ID and creation time.
func (s *ViewStore) Put(ctx context.Context, name, description string, view *rules.View) (*StoredView, error) {
	if err := ValidateViewName(name); err != nil {
		return nil, err
	}
	doc, err := encodeView(view)
	if err != nil {
		return nil, err
	}

	res, err := s.q.ExecContext(ctx, "update-view", description, doc, time.Now().UTC(), name)
	if err != nil {
		return nil, fmt.Errorf("failed to update view: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return s.Create(ctx, name, description, view)
	}
	return s.Get(ctx, name)
}

// Get returns the named view. Returns types.ErrViewNotFound if absent.
func (s *ViewStore) Get(ctx context.Context, name string) (*StoredView, error) {
	var stored StoredView
	err := s.q.GetContext(ctx, "get-view-by-name", &stored, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrViewNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get view: %w", err)
	}
	return &stored, nil
}

// Load returns the parsed view stored under name.
func (s *ViewStore) Load(ctx context.Context, name string) (*rules.View, error) {
	stored, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return stored.View()
}

// List returns all stored views ordered by name.
func (s *ViewStore) List(ctx context.Context) ([]StoredView, error) {
	var views []StoredView
	if err := s.q.SelectContext(ctx, "list-views", &views); err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	return views, nil
}

// Delete removes the named view. Returns types.ErrViewNotFound if absent.
func (s *ViewStore) Delete(ctx context.Context, name string) error {
	res, err := s.q.ExecContext(ctx, "delete-view", name)
	if err != nil {
		return fmt.Errorf("failed to delete view: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete view: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrViewNotFound, name)
	}
	return nil
}
