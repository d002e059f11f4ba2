// Package model defines the lead routing domain types shared across packages.
package model

import (
	"time"

	"github.com/sells-group/prospect-cli/internal/textnorm"
)

// LeadStatus is the qualification state assigned at import time.
type LeadStatus string

const (
	LeadStatusQualified     LeadStatus = "qualified"
	LeadStatusNeedsAnalysis LeadStatus = "needs_analysis"
)

// Priority is the triage tier of a lead. Higher tiers are worked first.
type Priority string

const (
	PriorityStandard Priority = "standard"
	PriorityGold     Priority = "gold"
	PriorityDiamond  Priority = "diamond"
)

// Rank orders priorities: standard < gold < diamond. Unknown values rank as standard.
func (p Priority) Rank() int {
	switch p {
	case PriorityDiamond:
		return 2
	case PriorityGold:
		return 1
	default:
		return 0
	}
}

// Max returns the higher of two priorities.
func (p Priority) Max(other Priority) Priority {
	if other.Rank() > p.Rank() {
		return other
	}
	if p == "" {
		return PriorityStandard
	}
	return p
}

// Address is the canonical address of a lead.
type Address struct {
	Street       string `json:"street"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"` // 8 digits or empty
}

// Lead is a prospect business tracked through the sales pipeline.
type Lead struct {
	ID          string       `json:"id"`
	ClientCode  int          `json:"client_code"`
	Name        string       `json:"name"`
	Category    string       `json:"category,omitempty"`
	Address     Address      `json:"address"`
	Phone       string       `json:"phone,omitempty"`
	Website     string       `json:"website,omitempty"`
	Rating      float64      `json:"rating"`
	Reviews     int          `json:"reviews"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Status      LeadStatus   `json:"status"`
	Priority    Priority     `json:"priority"`
	SellerID    *string      `json:"seller_id,omitempty"`
	Comments    []Comment    `json:"comments,omitempty"`
	Source      string       `json:"source,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Assigned reports whether the lead already has a responsible seller.
func (l *Lead) Assigned() bool {
	return l.SellerID != nil && *l.SellerID != ""
}

// DedupKey returns the identity used to detect re-imported leads.
func (l *Lead) DedupKey() string {
	return DedupKey(l.Name, l.Address.City)
}

// DedupKey folds name and city so spelling variants in case, accents,
// spacing, or encoding collide.
func DedupKey(name, city string) string {
	return textnorm.FoldKey(name) + "|" + textnorm.FoldKey(city)
}

// CommentTexts returns the comment bodies in insertion order.
func (l *Lead) CommentTexts() []string {
	out := make([]string, len(l.Comments))
	for i, c := range l.Comments {
		out[i] = c.Text
	}
	return out
}

// Comment is a free-text note attached to exactly one lead. Never mutated after creation.
type Comment struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Position  int       `json:"position"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadFilter selects leads for listing. Results are ordered by client code;
// AfterCode gives keyset paging for batch jobs that mutate what they list.
type LeadFilter struct {
	SellerID   string
	Unassigned bool
	AfterCode  int
	Limit      int
	Offset     int
}
