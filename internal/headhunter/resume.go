package headhunter

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// ResumeDetails is the full per-resume record. Raw keeps the origin payload
// untouched for audit.
type ResumeDetails struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Area  struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"area"`
	Salary *struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	} `json:"salary"`
	Skills []struct {
		Name string `json:"name"`
	} `json:"skills"`
	TotalExperience *struct {
		Months int `json:"months"`
	} `json:"total_experience"`
	Contacts  map[string]any `json:"contacts"`
	UpdatedAt string         `json:"updated_at"`

	Raw map[string]any `json:"-"`
}

// GetResumeDetails fetches the full record for one resume. Any failure is
// logged and reported as an absent record rather than escalated.
func (c *Client) GetResumeDetails(ctx context.Context, id string) *ResumeDetails {
	var raw map[string]any
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s", resumesPath, id), nil, &raw); err != nil {
		c.logger.Error("fetching resume details failed",
			zap.String("resume_id", id),
			zap.Error(err),
		)
		return nil
	}

	var details ResumeDetails
	// Weak typing converts the float64 numbers produced by JSON decoding
	// into the typed integer fields.
	cfg := &mapstructure.DecoderConfig{
		Result:           &details,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, _ := mapstructure.NewDecoder(cfg)
	if err := decoder.Decode(raw); err != nil {
		c.logger.Error("decoding resume details failed",
			zap.String("resume_id", id),
			zap.Error(err),
		)
		return nil
	}

	details.Raw = raw

	return &details
}

// UpdatedTime parses the record's update timestamp, falling back to the zero
// time when the source sends something unparseable.
func (r *ResumeDetails) UpdatedTime() time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, r.UpdatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}
