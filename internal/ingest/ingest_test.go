package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/akozyrev/hh-scout/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger { return zap.NewNop() }

type fakeSource struct {
	payloads []store.ResumeCreate
	err      error
}

func (f *fakeSource) FetchNormalized(_ context.Context, _, _ string, limit int) ([]store.ResumeCreate, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.payloads) {
		return f.payloads[:limit], nil
	}
	return f.payloads, nil
}

func payload(sourceID, fio, position string) store.ResumeCreate {
	return store.ResumeCreate{
		Source:   "hh",
		SourceID: sourceID,
		FIO:      fio,
		City:     "Moscow",
		Position: position,
		Skills:   []string{"go"},
	}
}

func TestRunCreatesNewRecords(t *testing.T) {
	s := store.NewMemory()
	source := &fakeSource{payloads: []store.ResumeCreate{
		payload("r1", "Ivan Petrov", "Go Developer"),
		payload("r2", "Anna Sidorova", "Go Developer"),
	}}

	summary, err := New(source, s, testLogger()).Run(context.Background(), "go", "Moscow", 10)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 2, summary.Created)
	assert.Zero(t, summary.Updated)
	assert.Zero(t, summary.Links)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunIsIdempotent(t *testing.T) {
	s := store.NewMemory()
	source := &fakeSource{payloads: []store.ResumeCreate{
		payload("r1", "Ivan Petrov", "Go Developer"),
	}}
	ingestor := New(source, s, testLogger())
	ctx := context.Background()

	first, err := ingestor.Run(ctx, "go", "Moscow", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	// Same record with fresher data: updated, not duplicated.
	source.payloads[0].City = "Kazan"
	second, err := ingestor.Run(ctx, "go", "Moscow", 10)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Updated)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	resume, err := s.GetBySource(ctx, "hh", "r1")
	require.NoError(t, err)
	assert.Equal(t, "Kazan", resume.City)
}

func TestRunMarksDuplicatesOnCreate(t *testing.T) {
	s := store.NewMemory()
	source := &fakeSource{payloads: []store.ResumeCreate{
		payload("r1", "Ivan Petrov", "Go Developer"),
		payload("r2", "Ivan Petrov", "Go Developer"),
	}}

	summary, err := New(source, s, testLogger()).Run(context.Background(), "go", "Moscow", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Links)

	ctx := context.Background()
	first, err := s.GetBySource(ctx, "hh", "r1")
	require.NoError(t, err)

	links, err := s.DuplicatesFor(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestRunPropagatesFetchFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("area resolution failed")}

	_, err := New(source, store.NewMemory(), testLogger()).Run(context.Background(), "go", "Atlantis", 10)
	assert.Error(t, err)
}
