package models

import (
	"encoding/json"
	"time"
)

// IssueCategory classifies the civic concern an issue reports.
type IssueCategory string

const (
	CategoryRoads       IssueCategory = "roads"
	CategoryWater       IssueCategory = "water"
	CategoryHealth      IssueCategory = "health"
	CategorySecurity    IssueCategory = "security"
	CategoryCorruption  IssueCategory = "corruption"
	CategoryEducation   IssueCategory = "education"
	CategoryEnvironment IssueCategory = "environment"
	CategoryHousing     IssueCategory = "housing"
)

// ValidCategory reports whether the value is a known category.
func ValidCategory(c IssueCategory) bool {
	switch c {
	case CategoryRoads, CategoryWater, CategoryHealth, CategorySecurity,
		CategoryCorruption, CategoryEducation, CategoryEnvironment, CategoryHousing:
		return true
	}
	return false
}

// IssueSeverity ranks urgency of an issue.
type IssueSeverity string

const (
	SeverityLow      IssueSeverity = "low"
	SeverityMedium   IssueSeverity = "medium"
	SeverityHigh     IssueSeverity = "high"
	SeverityCritical IssueSeverity = "critical"
)

// ValidSeverity reports whether the value is a known severity.
func ValidSeverity(s IssueSeverity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// IssueStatus tracks the moderation lifecycle of an issue.
type IssueStatus string

const (
	StatusOpen     IssueStatus = "open"
	StatusPending  IssueStatus = "pending"
	StatusResolved IssueStatus = "resolved"
	StatusClosed   IssueStatus = "closed"
)

// ValidStatus reports whether the value is a known lifecycle status.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case StatusOpen, StatusPending, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// VoteType is the direction of a single user's standing vote.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// ValidVoteType reports whether the value is an accepted vote direction.
func ValidVoteType(v VoteType) bool {
	return v == VoteUp || v == VoteDown
}

// VoteOutcome describes the effect a cast vote had.
type VoteOutcome string

const (
	VoteRecorded VoteOutcome = "recorded"
	VoteUpdated  VoteOutcome = "updated"
	VoteRemoved  VoteOutcome = "removed"
)

// Message renders the outcome in the wire format clients expect.
func (o VoteOutcome) Message() string {
	switch o {
	case VoteRecorded:
		return "Vote recorded"
	case VoteUpdated:
		return "Vote updated"
	case VoteRemoved:
		return "Vote removed"
	}
	return string(o)
}

// Issue represents a citizen-submitted civic complaint.
type Issue struct {
	ID          string        `db:"id" json:"id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description"`
	Category    IssueCategory `db:"category" json:"category"`
	Severity    IssueSeverity `db:"severity" json:"severity"`
	Status      IssueStatus   `db:"status" json:"status"`

	County       string   `db:"county" json:"county"`
	Constituency string   `db:"constituency" json:"constituency"`
	Ward         string   `db:"ward" json:"ward"`
	Location     *string  `db:"location" json:"location,omitempty"`
	Latitude     *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64 `db:"longitude" json:"longitude,omitempty"`

	SubmittedByID string    `db:"submitted_by" json:"-"`
	SubmittedBy   *UserInfo `db:"-" json:"submitted_by,omitempty"`
	Anonymous     bool      `db:"anonymous" json:"anonymous"`

	Upvotes   int `db:"upvotes" json:"upvotes"`
	Downvotes int `db:"downvotes" json:"downvotes"`
	VoteScore int `db:"-" json:"vote_score"`

	AIConfidence *float64        `db:"ai_confidence" json:"ai_confidence,omitempty"`
	AITags       json.RawMessage `db:"ai_tags" json:"ai_tags,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	UserVote      *VoteType       `db:"-" json:"user_vote,omitempty"`
	Images        []IssueImage    `db:"-" json:"images,omitempty"`
	AdminResponse *AdminResponse  `db:"-" json:"admin_response,omitempty"`
	InternalNotes []InternalNote  `db:"-" json:"internal_notes,omitempty"`
	Updates       []IssueUpdate   `db:"-" json:"updates,omitempty"`
}

// Score returns the derived ranking signal upvotes minus downvotes.
func (i *Issue) Score() int {
	return i.Upvotes - i.Downvotes
}

// IssueImage is an attachment on an issue.
type IssueImage struct {
	ID         string    `db:"id" json:"id"`
	IssueID    string    `db:"issue_id" json:"-"`
	URL        string    `db:"url" json:"url"`
	Caption    string    `db:"caption" json:"caption"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// AdminResponse is the single public reply attached to an issue.
type AdminResponse struct {
	ID            string    `db:"id" json:"id"`
	IssueID       string    `db:"issue_id" json:"-"`
	Message       string    `db:"message" json:"message"`
	RespondedByID string    `db:"responded_by" json:"-"`
	RespondedBy   *UserInfo `db:"-" json:"responded_by,omitempty"`
	IsPublic      bool      `db:"is_public" json:"is_public"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// InternalNote is a moderator-only annotation, never exposed publicly.
type InternalNote struct {
	ID        string    `db:"id" json:"id"`
	IssueID   string    `db:"issue_id" json:"-"`
	Note      string    `db:"note" json:"note"`
	AddedByID string    `db:"added_by" json:"-"`
	AddedBy   *UserInfo `db:"-" json:"added_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IssueUpdate is a progress entry posted against an issue.
type IssueUpdate struct {
	ID          string    `db:"id" json:"id"`
	IssueID     string    `db:"issue_id" json:"-"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	UpdatedByID string    `db:"updated_by" json:"-"`
	UpdatedBy   *UserInfo `db:"-" json:"updated_by,omitempty"`
	IsPublic    bool      `db:"is_public" json:"is_public"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// IssueVote is one user's standing vote on one issue. At most one row exists
// per (issue, user) pair.
type IssueVote struct {
	ID        string    `db:"id" json:"id"`
	IssueID   string    `db:"issue_id" json:"issue_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	VoteType  VoteType  `db:"vote_type" json:"vote_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IssueFilter captures the independently optional, conjunctive list filters.
type IssueFilter struct {
	Category     string
	Severity     string
	Status       string
	County       string
	Constituency string
	Ward         string
	DateFrom     *time.Time
	DateTo       *time.Time
	Anonymous    *bool
	SubmittedBy  string
	Search       string
	SortBy       string
	SortOrder    string
	Page         int
	PageSize     int
}
