package headhunter

import (
	"errors"
	"math"
	"strings"

	"github.com/akozyrev/hh-scout/internal/store"
)

// SourceName tags records ingested from hh.ru.
const SourceName = "hh"

// Normalize maps a full hh.ru resume record into a local creation payload.
//
// Policy: total experience in months becomes years rounded to one decimal;
// expected salary prefers the range's upper bound, then the lower one; the
// position is the headline text before the first comma.
func Normalize(details *ResumeDetails) (store.ResumeCreate, error) {
	if details == nil {
		return store.ResumeCreate{}, errors.New("resume details are required")
	}
	if details.ID == "" {
		return store.ResumeCreate{}, errors.New("resume id is missing")
	}

	var experienceYears float64
	if details.TotalExperience != nil {
		experienceYears = math.Round(float64(details.TotalExperience.Months)/12*10) / 10
	}

	skills := make([]string, 0, len(details.Skills))
	for _, skill := range details.Skills {
		skills = append(skills, skill.Name)
	}

	var salaryExpect *int
	if details.Salary != nil {
		if details.Salary.To != nil {
			salaryExpect = details.Salary.To
		} else if details.Salary.From != nil {
			salaryExpect = details.Salary.From
		}
	}

	contacts := map[string]any{}
	if details.Contacts != nil {
		contacts["email"] = details.Contacts["email"]
		contacts["phone"] = details.Contacts["phone"]
	}

	position, _, _ := strings.Cut(details.Title, ",")

	return store.ResumeCreate{
		Source:          SourceName,
		SourceID:        details.ID,
		FIO:             details.Title,
		City:            details.Area.Name,
		ExperienceYears: experienceYears,
		Position:        strings.TrimSpace(position),
		Skills:          skills,
		SalaryExpect:    salaryExpect,
		PublishedAt:     details.UpdatedTime(),
		JSONRaw: map[string]any{
			"hh_data":  details.Raw,
			"contacts": contacts,
		},
	}, nil
}
