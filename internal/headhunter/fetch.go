package headhunter

import (
	"context"
	"fmt"

	"github.com/akozyrev/hh-scout/internal/store"
	"go.uber.org/zap"
)

// FetchNormalized resolves the city to an area once, then walks search pages
// in order, fetching full details and normalizing every summary into a
// creation payload. It stops when limit payloads are collected, a page comes
// back empty, or a page is shorter than a full one. Per-record failures are
// skipped; whatever subset succeeded is returned.
func (c *Client) FetchNormalized(ctx context.Context, position, city string, limit int) ([]store.ResumeCreate, error) {
	if limit <= 0 {
		return nil, nil
	}

	areaID, err := c.AreaID(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("resolving area for %q: %w", city, err)
	}

	var payloads []store.ResumeCreate

	for page := 0; len(payloads) < limit; page++ {
		perPage := maxPerPage
		if left := limit - len(payloads); left < perPage {
			perPage = left
		}

		summaries := c.SearchPage(ctx, position, areaID, page, perPage)
		if len(summaries) == 0 {
			break
		}

		for _, summary := range summaries {
			if len(payloads) >= limit {
				break
			}

			details := c.GetResumeDetails(ctx, summary.ID)
			if details == nil {
				continue
			}

			payload, err := Normalize(details)
			if err != nil {
				c.logger.Warn("skipping resume",
					zap.String("resume_id", summary.ID),
					zap.Error(err),
				)
				continue
			}

			payloads = append(payloads, payload)
		}

		// A short page means the source is exhausted.
		if len(summaries) < maxPerPage {
			break
		}
	}

	c.logger.Info("fetched resumes from hh.ru",
		zap.String("position", position),
		zap.String("area", areaID),
		zap.Int("count", len(payloads)),
	)

	return payloads, nil
}
