package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/akozyrev/hh-scout/internal/store"
	"go.uber.org/zap"
)

// Source produces normalized creation payloads from an external catalog.
type Source interface {
	FetchNormalized(ctx context.Context, position, city string, limit int) ([]store.ResumeCreate, error)
}

// Summary reports what one ingestion run did.
type Summary struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Links   int `json:"duplicate_links"`
}

// Ingestor pulls resumes from a source and upserts them into the store,
// scanning fresh records for duplicates.
type Ingestor struct {
	source Source
	store  store.Store
	logger *zap.Logger
}

func New(source Source, s store.Store, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		source: source,
		store:  s,
		logger: logger,
	}
}

// Run executes one ingestion batch. Re-ingesting a known (source, source_id)
// pair updates the existing record instead of creating a second one. Store
// failures on individual records are logged and skipped, the batch continues.
func (i *Ingestor) Run(ctx context.Context, position, city string, limit int) (*Summary, error) {
	payloads, err := i.source.FetchNormalized(ctx, position, city, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching resumes: %w", err)
	}

	summary := &Summary{Fetched: len(payloads)}

	for _, payload := range payloads {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		resume, created, err := i.upsert(ctx, payload)
		if err != nil {
			summary.Skipped++
			i.logger.Warn("skipping resume",
				zap.String("source", payload.Source),
				zap.String("source_id", payload.SourceID),
				zap.Error(err),
			)
			continue
		}

		if !created {
			summary.Updated++
			continue
		}
		summary.Created++

		links, err := i.scanForDuplicates(ctx, resume)
		if err != nil {
			i.logger.Warn("duplicate scan failed",
				zap.String("resume_id", resume.ID.String()),
				zap.Error(err),
			)
			continue
		}
		summary.Links += links
	}

	i.logger.Info("ingestion finished",
		zap.String("position", position),
		zap.String("city", city),
		zap.Int("fetched", summary.Fetched),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("duplicate_links", summary.Links),
	)

	return summary, nil
}

func (i *Ingestor) upsert(ctx context.Context, payload store.ResumeCreate) (*store.Resume, bool, error) {
	existing, err := i.store.GetBySource(ctx, payload.Source, payload.SourceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	if existing != nil {
		updated, err := i.store.Update(ctx, existing.ID, updateFromPayload(payload))
		if err != nil {
			return nil, false, err
		}
		return updated, false, nil
	}

	created, err := i.store.Create(ctx, payload)
	if err != nil {
		return nil, false, err
	}

	return created, true, nil
}

func (i *Ingestor) scanForDuplicates(ctx context.Context, resume *store.Resume) (int, error) {
	candidates, err := i.store.FindDuplicateCandidates(ctx, resume.ID)
	if err != nil {
		return 0, err
	}

	links := 0
	for _, candidate := range candidates {
		if _, err := i.store.MarkDuplicate(ctx, candidate.ID, resume.ID); err != nil {
			i.logger.Warn("marking duplicate failed",
				zap.String("original_id", candidate.ID.String()),
				zap.String("duplicate_id", resume.ID.String()),
				zap.Error(err),
			)
			continue
		}
		links++
	}

	return links, nil
}

func updateFromPayload(payload store.ResumeCreate) store.ResumeUpdate {
	skills := payload.Skills
	return store.ResumeUpdate{
		FIO:             &payload.FIO,
		City:            &payload.City,
		ExperienceYears: &payload.ExperienceYears,
		Position:        &payload.Position,
		Skills:          &skills,
		SalaryExpect:    payload.SalaryExpect,
	}
}
