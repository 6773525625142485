package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup matches no resume.
	ErrNotFound = errors.New("resume not found")
	// ErrConflict is returned when a create would violate the
	// (source, source_id) uniqueness invariant.
	ErrConflict = errors.New("resume already exists for this source")
	// ErrSelfDuplicate is returned when both sides of a duplicate link point
	// to the same resume.
	ErrSelfDuplicate = errors.New("resume cannot be a duplicate of itself")
)

// Resume is the canonical local representation of one candidate profile
// ingested from an external source.
type Resume struct {
	ID              uuid.UUID      `json:"id"`
	Source          string         `json:"source"`
	SourceID        string         `json:"source_id"`
	FIO             string         `json:"fio"`
	City            string         `json:"city"`
	ExperienceYears float64        `json:"experience_years"`
	Position        string         `json:"position"`
	Skills          []string       `json:"skills"`
	SalaryExpect    *int           `json:"salary_expect,omitempty"`
	PublishedAt     time.Time      `json:"published_at"`
	JSONRaw         map[string]any `json:"json_raw,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ResumeCreate carries the fields of a resume before it gets an id and
// timestamps assigned by the store.
type ResumeCreate struct {
	Source          string         `json:"source"`
	SourceID        string         `json:"source_id"`
	FIO             string         `json:"fio"`
	City            string         `json:"city"`
	ExperienceYears float64        `json:"experience_years"`
	Position        string         `json:"position"`
	Skills          []string       `json:"skills"`
	SalaryExpect    *int           `json:"salary_expect,omitempty"`
	PublishedAt     time.Time      `json:"published_at"`
	JSONRaw         map[string]any `json:"json_raw,omitempty"`
}

// ResumeUpdate is a partial update. Only non-nil fields are applied.
type ResumeUpdate struct {
	FIO             *string   `json:"fio,omitempty"`
	City            *string   `json:"city,omitempty"`
	ExperienceYears *float64  `json:"experience_years,omitempty"`
	Position        *string   `json:"position,omitempty"`
	Skills          *[]string `json:"skills,omitempty"`
	SalaryExpect    *int      `json:"salary_expect,omitempty"`
}

// Duplicate is an asserted relationship marking two resumes as the same
// candidate. The pair is stored in canonical order: the lexicographically
// smaller id is always Orig, which makes marking idempotent and rules out
// A->B plus B->A cycles.
type Duplicate struct {
	ID        uuid.UUID `json:"id"`
	Orig      uuid.UUID `json:"orig"`
	Dup       uuid.UUID `json:"dup"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter narrows down List results. Zero values mean "no filter".
type ListFilter struct {
	// Query matches case-insensitively against position, fio or an exact
	// skill entry.
	Query string
	// City is a case-insensitive substring match.
	City string
	// Experience bounds in years, inclusive.
	ExpMin *float64
	ExpMax *float64

	Offset int
	Limit  int
}

// Store persists resumes and duplicate links.
//
// List returns records ordered by creation time, then id, so pagination is
// stable. Create fails with ErrConflict when (source, source_id) is taken.
type Store interface {
	Create(ctx context.Context, data ResumeCreate) (*Resume, error)
	Get(ctx context.Context, id uuid.UUID) (*Resume, error)
	GetBySource(ctx context.Context, source, sourceID string) (*Resume, error)
	List(ctx context.Context, filter ListFilter) ([]*Resume, error)
	Update(ctx context.Context, id uuid.UUID, data ResumeUpdate) (*Resume, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Count(ctx context.Context) (int, error)

	FindDuplicateCandidates(ctx context.Context, id uuid.UUID) ([]*Resume, error)
	MarkDuplicate(ctx context.Context, origID, dupID uuid.UUID) (*Duplicate, error)
	DuplicatesFor(ctx context.Context, id uuid.UUID) ([]*Duplicate, error)
}

// canonicalPair orders a duplicate pair by id string.
func canonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if b.String() < a.String() {
		return b, a
	}
	return a, b
}
