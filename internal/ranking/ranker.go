package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/akozyrev/hh-scout/internal/store"
	"github.com/akozyrev/hh-scout/internal/utils"
	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const (
	// Scores live in [0, maxScore]; out-of-range model output is clamped.
	maxScore = 10
	// Only the strongest candidates are reported back.
	topCandidates = 10

	defaultMaxLogLength = 200
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Analysis is one scored resume.
type Analysis struct {
	Resume  *store.Resume `json:"resume"`
	Score   float64       `json:"score"`
	Details string        `json:"details"`
}

// Ranker scores stored resumes against a job description with an external
// model and returns the best matches first.
type Ranker struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewRanker(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Ranker {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Ranker{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Rank scores every resume and returns up to ten results ordered by score
// descending. A scoring failure drops that one resume from the output, it
// does not abort the batch.
func (r *Ranker) Rank(ctx context.Context, description string, resumes []*store.Resume) ([]*Analysis, error) {
	analyses := make([]*Analysis, 0, len(resumes))

	for _, resume := range resumes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prompt := buildPrompt(description, resume)

		r.logger.Debug("scoring resume",
			zap.String("resume_id", resume.ID.String()),
			zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
			zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
		)

		raw, err := r.generator.GenerateContent(ctx, prompt)
		if err != nil {
			r.logger.Warn("scoring failed, skipping resume",
				zap.String("resume_id", resume.ID.String()),
				zap.Error(err),
			)
			continue
		}

		analysis, err := parseAnalysis(raw)
		if err != nil {
			r.logger.Warn("unparseable scorer response, skipping resume",
				zap.String("resume_id", resume.ID.String()),
				zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
				zap.Error(err),
			)
			continue
		}

		analysis.Resume = resume
		analyses = append(analyses, analysis)
	}

	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].Score > analyses[j].Score
	})

	if len(analyses) > topCandidates {
		analyses = analyses[:topCandidates]
	}

	return analyses, nil
}

func buildPrompt(description string, resume *store.Resume) string {
	summary := fmt.Sprintf("Position: %s\nExperience: %.1f years\nSkills: %s\nCity: %s",
		resume.Position,
		resume.ExperienceYears,
		strings.Join(resume.Skills, ", "),
		resume.City,
	)

	prompt := strings.ReplaceAll(promptTemplate, "{{JOB_DESCRIPTION}}", description)
	return strings.ReplaceAll(prompt, "{{RESUME}}", summary)
}

func parseAnalysis(raw string) (*Analysis, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse scorer response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("scorer response has no usable score")
	}

	score = math.Max(0, math.Min(maxScore, score))

	return &Analysis{
		Score:   score,
		Details: coerceString(data["details"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
