package domain

import "time"

// Lead is the canonical record of one prospective job opportunity.
type Lead struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title" validate:"required"`
	Description     string    `json:"description"`
	Source          string    `json:"source" validate:"required"`
	SourceURL       string    `json:"sourceUrl"`
	Location        string    `json:"location" validate:"required"`
	PostedAt        time.Time `json:"postedAt" validate:"required"`
	BudgetRange     string    `json:"budgetRange,omitempty"`
	Category        Category  `json:"category" validate:"required"`
	ContactMethod   string    `json:"contactMethod" validate:"oneof=email phone message direct"`
	Status          Status    `json:"status" validate:"required"`
	Saved           bool      `json:"saved"`
	Score           int       `json:"score"`
	DedupeKey       string    `json:"dedupeKey"`
	InServiceArea   bool      `json:"inServiceArea"`
	FirstSeenAt     time.Time `json:"firstSeenAt"`
	LastSeenAt      time.Time `json:"lastSeenAt"`
	SeenCount       int       `json:"seenCount"`
	StatusChangedAt time.Time `json:"statusChangedAt"`
}

// RawPosting is what a source adapter hands to the pipeline. Only Title,
// Description, Location and one of PostedAt/PostedText are expected; the rest
// is best-effort.
type RawPosting struct {
	Title         string
	Description   string
	Location      string
	PostedAt      *time.Time
	PostedText    string // unparsed date text, e.g. "3 hours ago"
	URL           string
	Budget        string
	ContactMethod string
	ExternalID    string
}

// StatusChange is one entry of a lead's status history.
type StatusChange struct {
	LeadID int64     `json:"leadId"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

const (
	ContactEmail   = "email"
	ContactPhone   = "phone"
	ContactMessage = "message"
	ContactDirect  = "direct"
)

func ValidContactMethod(m string) bool {
	switch m {
	case ContactEmail, ContactPhone, ContactMessage, ContactDirect:
		return true
	}
	return false
}
