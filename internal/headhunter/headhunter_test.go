package headhunter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/akozyrev/hh-scout/internal/ratelimit"
	"go.uber.org/zap"
)

type fakeHH struct {
	mux            *http.ServeMux
	tokenExchanges atomic.Int64
	tokenStatus    int
	expiresIn      int
}

func newFakeHH() *fakeHH {
	f := &fakeHH{
		mux:         http.NewServeMux(),
		tokenStatus: http.StatusOK,
		expiresIn:   3600,
	}

	f.mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenExchanges.Add(1)
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   f.expiresIn,
		})
	})

	return f
}

func newTestClient(t *testing.T, fake *fakeHH) *Client {
	t.Helper()

	server := httptest.NewServer(fake.mux)
	t.Cleanup(server.Close)

	client := New(zap.NewNop(), ratelimit.New(100000), "id", "secret")
	client.APIURL = server.URL

	return client
}

func areasHandler(countries []Area) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(countries)
	}
}

func testAreas() []Area {
	return []Area{
		{
			ID:   "113",
			Name: "Russia",
			Areas: []Area{
				{ID: "1", Name: "Moscow"},
				{
					ID:   "2019",
					Name: "Moscow Oblast",
					Areas: []Area{
						{ID: "2074", Name: "Khimki"},
					},
				},
			},
		},
	}
}

func TestAccessTokenIsCached(t *testing.T) {
	fake := newFakeHH()
	fake.mux.HandleFunc("/areas", areasHandler(testAreas()))
	client := newTestClient(t, fake)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.AreaID(ctx, "Moscow"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := fake.tokenExchanges.Load(); got != 1 {
		t.Fatalf("expected a single token exchange, got %d", got)
	}
}

func TestAccessTokenExpiredTriggersRefresh(t *testing.T) {
	fake := newFakeHH()
	fake.expiresIn = 0
	fake.mux.HandleFunc("/areas", areasHandler(testAreas()))
	client := newTestClient(t, fake)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.AreaID(ctx, "Moscow"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := fake.tokenExchanges.Load(); got != 2 {
		t.Fatalf("expected an exchange per request with an expired token, got %d", got)
	}
}

func TestAuthFailureIsNotRetried(t *testing.T) {
	fake := newFakeHH()
	fake.tokenStatus = http.StatusForbidden
	fake.mux.HandleFunc("/areas", areasHandler(testAreas()))
	client := newTestClient(t, fake)

	_, err := client.AreaID(context.Background(), "Moscow")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}

	if got := fake.tokenExchanges.Load(); got != 1 {
		t.Fatalf("expected a single exchange attempt, got %d", got)
	}
}

func TestAreaIDResolution(t *testing.T) {
	fake := newFakeHH()
	fake.mux.HandleFunc("/areas", areasHandler(testAreas()))
	client := newTestClient(t, fake)
	ctx := context.Background()

	cases := []struct {
		city string
		want string
	}{
		{"Moscow", "1"},
		{"moscow", "1"},
		{"MOSCOW", "1"},
		{"khimki", "2074"},
	}

	for _, tc := range cases {
		got, err := client.AreaID(ctx, tc.city)
		if err != nil {
			t.Fatalf("AreaID(%q): unexpected error: %v", tc.city, err)
		}
		if got != tc.want {
			t.Fatalf("AreaID(%q) = %q, want %q", tc.city, got, tc.want)
		}
	}

	if _, err := client.AreaID(ctx, "Atlantis"); !errors.Is(err, ErrAreaNotFound) {
		t.Fatalf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestTooManyRequestsRetriedOnce(t *testing.T) {
	fake := newFakeHH()
	var calls atomic.Int64
	fake.mux.HandleFunc("/areas", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(testAreas())
	})
	client := newTestClient(t, fake)

	if _, err := client.AreaID(context.Background(), "Moscow"); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestTooManyRequestsGivesUpAfterRetry(t *testing.T) {
	fake := newFakeHH()
	var calls atomic.Int64
	fake.mux.HandleFunc("/areas", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client := newTestClient(t, fake)

	if _, err := client.AreaID(context.Background(), "Moscow"); err == nil {
		t.Fatal("expected error after exhausted retry")
	}

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", got)
	}
}

func TestSearchPageIsBestEffort(t *testing.T) {
	fake := newFakeHH()
	fake.mux.HandleFunc("/resumes", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client := newTestClient(t, fake)

	if got := client.SearchPage(context.Background(), "go developer", "1", 0, 100); len(got) != 0 {
		t.Fatalf("expected empty page on server error, got %d items", len(got))
	}
}

func TestFetchNormalizedStopsOnShortPage(t *testing.T) {
	fake := newFakeHH()
	fake.mux.HandleFunc("/areas", areasHandler(testAreas()))

	pageSizes := []int{100, 100, 30}
	var searched []int
	fake.mux.HandleFunc("/resumes", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		searched = append(searched, page)

		if page >= len(pageSizes) {
			t.Errorf("unexpected search for page %d", page)
			json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
			return
		}

		items := make([]map[string]any, 0, pageSizes[page])
		for i := 0; i < pageSizes[page]; i++ {
			items = append(items, map[string]any{
				"id":    fmt.Sprintf("p%d-%d", page, i),
				"title": "Go Developer",
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items, "page": page})
	})
	fake.mux.HandleFunc("/resumes/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/resumes/"):]
		json.NewEncoder(w).Encode(map[string]any{
			"id":    id,
			"title": "Go Developer",
			"area":  map[string]any{"id": "1", "name": "Moscow"},
		})
	})
	client := newTestClient(t, fake)

	payloads, err := client.FetchNormalized(context.Background(), "go developer", "Moscow", 250)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(payloads) != 230 {
		t.Fatalf("expected 230 normalized payloads, got %d", len(payloads))
	}

	if len(searched) != 3 {
		t.Fatalf("expected 3 search pages, got %v", searched)
	}
}

func TestFetchNormalizedSkipsFailedDetails(t *testing.T) {
	fake := newFakeHH()
	fake.mux.HandleFunc("/areas", areasHandler(testAreas()))
	fake.mux.HandleFunc("/resumes", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{
			{"id": "good", "title": "Go Developer"},
			{"id": "broken", "title": "Go Developer"},
		}})
	})
	fake.mux.HandleFunc("/resumes/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/resumes/"):]
		if id == "broken" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    id,
			"title": "Go Developer",
			"area":  map[string]any{"id": "1", "name": "Moscow"},
		})
	})
	client := newTestClient(t, fake)

	payloads, err := client.FetchNormalized(context.Background(), "go developer", "Moscow", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(payloads) != 1 {
		t.Fatalf("expected the surviving record only, got %d", len(payloads))
	}
	if payloads[0].SourceID != "good" {
		t.Fatalf("unexpected source id: %s", payloads[0].SourceID)
	}
}

func TestFetchNormalizedEndToEnd(t *testing.T) {
	fake := newFakeHH()
	fake.mux.HandleFunc("/areas", areasHandler(testAreas()))
	fake.mux.HandleFunc("/resumes", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{
			{"id": "abc123", "title": "Senior Python Developer, remote"},
		}})
	})
	fake.mux.HandleFunc("/resumes/", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":               "abc123",
			"title":            "Senior Python Developer, remote",
			"area":             map[string]any{"id": "1", "name": "Moscow"},
			"salary":           map[string]any{"to": 150000},
			"skills":           []map[string]any{{"name": "python"}, {"name": "sql"}},
			"total_experience": map[string]any{"months": 30},
			"updated_at":       "2024-05-01T12:00:00+0300",
		})
	})
	client := newTestClient(t, fake)

	payloads, err := client.FetchNormalized(context.Background(), "python developer", "moscow", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(payloads))
	}

	payload := payloads[0]
	if payload.Source != SourceName {
		t.Fatalf("unexpected source: %s", payload.Source)
	}
	if payload.SourceID != "abc123" {
		t.Fatalf("unexpected source id: %s", payload.SourceID)
	}
	if payload.Position != "Senior Python Developer" {
		t.Fatalf("unexpected position: %q", payload.Position)
	}
	if payload.ExperienceYears != 2.5 {
		t.Fatalf("unexpected experience: %v", payload.ExperienceYears)
	}
	if payload.SalaryExpect == nil || *payload.SalaryExpect != 150000 {
		t.Fatalf("unexpected salary: %v", payload.SalaryExpect)
	}
	if payload.City != "Moscow" {
		t.Fatalf("unexpected city: %q", payload.City)
	}
	if len(payload.Skills) != 2 || payload.Skills[0] != "python" || payload.Skills[1] != "sql" {
		t.Fatalf("unexpected skills: %v", payload.Skills)
	}
	if payload.PublishedAt.IsZero() {
		t.Fatal("expected published_at to be parsed")
	}
}

func TestNormalizeSalaryFallsBackToLowerBound(t *testing.T) {
	from := 90000
	details := &ResumeDetails{ID: "r1", Title: "QA Engineer"}
	details.Salary = &struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	}{From: &from}

	payload, err := Normalize(details)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.SalaryExpect == nil || *payload.SalaryExpect != 90000 {
		t.Fatalf("expected lower bound fallback, got %v", payload.SalaryExpect)
	}
}

func TestNormalizeWithoutSalaryOrExperience(t *testing.T) {
	payload, err := Normalize(&ResumeDetails{ID: "r1", Title: "Intern"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.SalaryExpect != nil {
		t.Fatalf("expected nil salary, got %v", payload.SalaryExpect)
	}
	if payload.ExperienceYears != 0 {
		t.Fatalf("expected zero experience, got %v", payload.ExperienceYears)
	}
	if payload.Position != "Intern" {
		t.Fatalf("unexpected position: %q", payload.Position)
	}
}
