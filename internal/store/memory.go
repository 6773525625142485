package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store implementation. It backs the test suite and
// serves as a fallback when no database is configured.
type Memory struct {
	mu         sync.RWMutex
	resumes    map[uuid.UUID]*Resume
	duplicates []*Duplicate

	now func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		resumes: make(map[uuid.UUID]*Resume),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Create(_ context.Context, data ResumeCreate) (*Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.resumes {
		if r.Source == data.Source && r.SourceID == data.SourceID {
			return nil, ErrConflict
		}
	}

	now := m.now()
	resume := &Resume{
		ID:              uuid.New(),
		Source:          data.Source,
		SourceID:        data.SourceID,
		FIO:             data.FIO,
		City:            data.City,
		ExperienceYears: data.ExperienceYears,
		Position:        data.Position,
		Skills:          append([]string(nil), data.Skills...),
		SalaryExpect:    data.SalaryExpect,
		PublishedAt:     data.PublishedAt,
		JSONRaw:         data.JSONRaw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	m.resumes[resume.ID] = resume

	return copyResume(resume), nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resume, ok := m.resumes[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyResume(resume), nil
}

func (m *Memory) GetBySource(_ context.Context, source, sourceID string) (*Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.resumes {
		if r.Source == source && r.SourceID == sourceID {
			return copyResume(r), nil
		}
	}

	return nil, ErrNotFound
}

func (m *Memory) List(_ context.Context, filter ListFilter) ([]*Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*Resume, 0, len(m.resumes))
	for _, r := range m.resumes {
		if matchesFilter(r, filter) {
			matched = append(matched, r)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if filter.Offset >= len(matched) {
		return []*Resume{}, nil
	}
	matched = matched[filter.Offset:]

	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	result := make([]*Resume, 0, len(matched))
	for _, r := range matched {
		result = append(result, copyResume(r))
	}

	return result, nil
}

func (m *Memory) Update(_ context.Context, id uuid.UUID, data ResumeUpdate) (*Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resume, ok := m.resumes[id]
	if !ok {
		return nil, ErrNotFound
	}

	if data.FIO != nil {
		resume.FIO = *data.FIO
	}
	if data.City != nil {
		resume.City = *data.City
	}
	if data.ExperienceYears != nil {
		resume.ExperienceYears = *data.ExperienceYears
	}
	if data.Position != nil {
		resume.Position = *data.Position
	}
	if data.Skills != nil {
		resume.Skills = append([]string(nil), (*data.Skills)...)
	}
	if data.SalaryExpect != nil {
		resume.SalaryExpect = data.SalaryExpect
	}

	resume.UpdatedAt = m.now()

	return copyResume(resume), nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resumes[id]; !ok {
		return false, nil
	}

	delete(m.resumes, id)

	// Links referencing the removed resume go away with it.
	kept := m.duplicates[:0]
	for _, d := range m.duplicates {
		if d.Orig != id && d.Dup != id {
			kept = append(kept, d)
		}
	}
	m.duplicates = kept

	return true, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.resumes), nil
}

func (m *Memory) FindDuplicateCandidates(_ context.Context, id uuid.UUID) ([]*Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current, ok := m.resumes[id]
	if !ok {
		return nil, ErrNotFound
	}

	var candidates []*Resume
	for _, r := range m.resumes {
		if r.ID == id {
			continue
		}
		if r.FIO == current.FIO && r.Position == current.Position {
			candidates = append(candidates, copyResume(r))
		}
	}

	return candidates, nil
}

func (m *Memory) MarkDuplicate(_ context.Context, origID, dupID uuid.UUID) (*Duplicate, error) {
	if origID == dupID {
		return nil, ErrSelfDuplicate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resumes[origID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := m.resumes[dupID]; !ok {
		return nil, ErrNotFound
	}

	orig, dup := canonicalPair(origID, dupID)

	for _, d := range m.duplicates {
		if d.Orig == orig && d.Dup == dup {
			existing := *d
			return &existing, nil
		}
	}

	link := &Duplicate{
		ID:        uuid.New(),
		Orig:      orig,
		Dup:       dup,
		CreatedAt: m.now(),
	}
	m.duplicates = append(m.duplicates, link)

	created := *link
	return &created, nil
}

func (m *Memory) DuplicatesFor(_ context.Context, id uuid.UUID) ([]*Duplicate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var links []*Duplicate
	for _, d := range m.duplicates {
		if d.Orig == id || d.Dup == id {
			link := *d
			links = append(links, &link)
		}
	}

	return links, nil
}

func matchesFilter(r *Resume, filter ListFilter) bool {
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		hit := strings.Contains(strings.ToLower(r.Position), q) ||
			strings.Contains(strings.ToLower(r.FIO), q)
		for _, skill := range r.Skills {
			if strings.EqualFold(skill, q) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}

	if city := strings.ToLower(strings.TrimSpace(filter.City)); city != "" {
		if !strings.Contains(strings.ToLower(r.City), city) {
			return false
		}
	}

	if filter.ExpMin != nil && r.ExperienceYears < *filter.ExpMin {
		return false
	}
	if filter.ExpMax != nil && r.ExperienceYears > *filter.ExpMax {
		return false
	}

	return true
}

func copyResume(r *Resume) *Resume {
	copied := *r
	copied.Skills = append([]string(nil), r.Skills...)
	return &copied
}
