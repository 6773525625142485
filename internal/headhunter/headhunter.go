package headhunter

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/akozyrev/hh-scout/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	apiURL    = "https://api.hh.ru"
	userAgent = "hh-scout/1.0 (akozyrev@yandex.ru)"
	// Max value for search per page.
	maxPerPage = 100
	// Resumes published within the last month.
	searchPeriodDays = 30

	requestTimeout         = 30 * time.Second
	tooManyRequestsBackoff = time.Second
)

var (
	// ErrAuth means the credential exchange failed. It is never retried.
	ErrAuth = errors.New("headhunter authentication failed")
	// ErrAreaNotFound is a valid negative result of area resolution, not a
	// transport failure.
	ErrAreaNotFound = errors.New("area not found")
)

// Client talks to the hh.ru API: client-credentials auth, area resolution,
// paginated resume search and per-resume detail fetch. All outbound calls go
// through the injected rate limiter.
type Client struct {
	logger  *zap.Logger
	limiter *ratelimit.Limiter

	clientID     string
	clientSecret string

	HTTPClient *http.Client
	APIURL     string
	UserAgent  string

	tokenMu      sync.RWMutex
	token        string
	tokenExpires time.Time
	refresh      singleflight.Group
}

func New(logger *zap.Logger, limiter *ratelimit.Limiter, clientID, clientSecret string) *Client {
	return &Client{
		logger:       logger,
		limiter:      limiter,
		clientID:     clientID,
		clientSecret: clientSecret,
		APIURL:       apiURL,
		UserAgent:    userAgent,
		HTTPClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}
