package headhunter

import (
	"context"
	"net/url"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const resumesPath = "/resumes"

// ResumeSummary is the short search-result form of a resume. Full details
// come from a separate per-resume request.
type ResumeSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type searchResponse struct {
	Items   []any `json:"items"`
	Found   int   `json:"found"`
	Pages   int   `json:"pages"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

// SearchPage fetches one page of resume search results ordered by publication
// time. Failures are logged and yield an empty page: search is best effort.
func (c *Client) SearchPage(ctx context.Context, position, areaID string, page, perPage int) []*ResumeSummary {
	if perPage <= 0 || perPage > maxPerPage {
		perPage = maxPerPage
	}

	q := url.Values{}
	q.Set("text", position)
	q.Set("area", areaID)
	q.Set("period", strconv.Itoa(searchPeriodDays))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("order_by", "publication_time")

	var response searchResponse
	if err := c.getJSON(ctx, resumesPath, q, &response); err != nil {
		c.logger.Error("resume search failed",
			zap.String("position", position),
			zap.Int("page", page),
			zap.Error(err),
		)
		return nil
	}

	var summaries []*ResumeSummary
	cfg := &mapstructure.DecoderConfig{
		Result:  &summaries,
		TagName: "json",
	}
	decoder, _ := mapstructure.NewDecoder(cfg)
	if err := decoder.Decode(response.Items); err != nil {
		c.logger.Error("decoding search items failed", zap.Error(err))
		return nil
	}

	return summaries
}
