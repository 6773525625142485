package headhunter

import (
	"context"
	"fmt"
	"strings"
)

const areasPath = "/areas"

// Area is one node of the hh.ru region hierarchy: country, area, sub-area.
type Area struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Areas []Area `json:"areas"`
}

// AreaID resolves a human-readable city name to the hh.ru area id. The match
// is exact and case-insensitive, checked on the area and sub-area levels of
// every country. ErrAreaNotFound is returned when no name matches.
func (c *Client) AreaID(ctx context.Context, city string) (string, error) {
	var countries []Area
	if err := c.getJSON(ctx, areasPath, nil, &countries); err != nil {
		return "", fmt.Errorf("fetching areas: %w", err)
	}

	for _, country := range countries {
		for _, area := range country.Areas {
			if strings.EqualFold(area.Name, city) {
				return area.ID, nil
			}
			for _, subArea := range area.Areas {
				if strings.EqualFold(subArea.Name, city) {
					return subArea.ID, nil
				}
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrAreaNotFound, city)
}
