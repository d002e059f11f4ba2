// Package store persists leads, comments, sellers, and the geocode cache.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// ErrClientCodeTaken is returned by CreateLead when another lead already holds
// the requested client code. Callers allocate a new code and retry.
var ErrClientCodeTaken = eris.New("store: client code taken")

// Store defines the persistence interface for the lead routing core.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	FindLead(ctx context.Context, dedupKey string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	SetLeadSeller(ctx context.Context, leadID, sellerID string) error
	SetLeadPriority(ctx context.Context, leadID string, p model.Priority) error
	SetLeadCoordinates(ctx context.Context, leadID string, c model.Coordinates) error
	DeleteLead(ctx context.Context, leadID string) error

	// Comments
	AddComment(ctx context.Context, leadID, text string) (*model.Comment, error)
	ListComments(ctx context.Context, leadID string) ([]model.Comment, error)

	// Sellers
	UpsertSellers(ctx context.Context, sellers []model.Seller) error
	ListSellers(ctx context.Context) ([]model.Seller, error)
	GetSeller(ctx context.Context, id string) (*model.Seller, error)

	// Client codes
	ClientCodesFrom(ctx context.Context, from int) ([]int, error)

	// Geocode cache
	GetGeocode(ctx context.Context, key string) (*model.Coordinates, bool, error)
	PutGeocode(ctx context.Context, key string, c *model.Coordinates) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func listLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}

// prepareLead validates the fields the schema requires and fills defaults.
func prepareLead(op string, lead *model.Lead) error {
	if lead == nil {
		return model.NewValidation(op, eris.New("lead is nil"))
	}
	if strings.TrimSpace(lead.Name) == "" {
		return model.NewValidation(op, eris.New("lead name is required"))
	}
	if lead.ClientCode <= 0 {
		return model.NewValidation(op, eris.Errorf("client code %d must be positive", lead.ClientCode))
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNeedsAnalysis
	}
	if lead.Priority == "" {
		lead.Priority = model.PriorityStandard
	}
	return nil
}

func notFound(op, entity, id string) error {
	return model.NewNotFound(op, eris.Errorf("%s %s not found", entity, id))
}

func nullableSeller(id *string) any {
	if id == nil || *id == "" {
		return nil
	}
	return *id
}

func coordArgs(c *model.Coordinates) (lat, lng any) {
	if c == nil {
		return nil, nil
	}
	return c.Lat, c.Lng
}

func commitErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return model.NewPersistence(op, eris.Wrap(err, "commit"))
}

func newComment(op, leadID, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.NewValidation(op, eris.New("comment text is required"))
	}
	return &model.Comment{
		ID:        uuid.New().String(),
		LeadID:    leadID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}, nil
}
