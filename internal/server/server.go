package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/akozyrev/hh-scout/internal/headhunter"
	"github.com/akozyrev/hh-scout/internal/ingest"
	"github.com/akozyrev/hh-scout/internal/ranking"
	"github.com/akozyrev/hh-scout/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultSearchLimit caps how many resumes one search ingests from the source.
const defaultSearchLimit = 1000

// Ingestor runs one ingestion batch against the external source.
type Ingestor interface {
	Run(ctx context.Context, position, city string, limit int) (*ingest.Summary, error)
}

// Ranker scores stored resumes against a job description.
type Ranker interface {
	Rank(ctx context.Context, description string, resumes []*store.Resume) ([]*ranking.Analysis, error)
}

// Server is the outward HTTP API: candidate search plus resume CRUD.
type Server struct {
	store    store.Store
	ingestor Ingestor
	ranker   Ranker
	logger   *zap.Logger

	// SearchLimit bounds per-search ingestion. Defaults to defaultSearchLimit.
	SearchLimit int
}

func New(s store.Store, ingestor Ingestor, ranker Ranker, logger *zap.Logger) *Server {
	return &Server{
		store:       s,
		ingestor:    ingestor,
		ranker:      ranker,
		logger:      logger,
		SearchLimit: defaultSearchLimit,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", s.ping)
	router.POST("/search", s.search)

	router.GET("/resumes", s.listResumes)
	router.GET("/resumes/:id", s.getResume)
	router.PATCH("/resumes/:id", s.updateResume)
	router.DELETE("/resumes/:id", s.deleteResume)
	router.GET("/resumes/:id/duplicates", s.resumeDuplicates)
	router.GET("/resumes/:id/duplicates/candidates", s.duplicateCandidates)
	router.POST("/resumes/:id/duplicates/:dup", s.markDuplicate)

	return router
}

// Run serves the API on the given address until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("starting http api", zap.String("addr", addr))
	return s.Router().Run(addr)
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type searchRequest struct {
	Position    string `json:"position" binding:"required"`
	City        string `json:"city" binding:"required"`
	Description string `json:"description" binding:"required"`
}

func (s *Server) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position, city and description are required"})
		return
	}

	if s.ranker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ranking is not configured"})
		return
	}

	ctx := c.Request.Context()

	if _, err := s.ingestor.Run(ctx, req.Position, req.City, s.SearchLimit); err != nil {
		// An unknown city is a valid empty result, not an outage.
		if errors.Is(err, headhunter.ErrAreaNotFound) {
			c.JSON(http.StatusOK, []*ranking.Analysis{})
			return
		}
		s.logger.Error("ingestion failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "candidate source is unavailable"})
		return
	}

	resumes, err := s.store.List(ctx, store.ListFilter{
		Query: req.Position,
		City:  req.City,
		Limit: s.SearchLimit,
	})
	if err != nil {
		s.logger.Error("listing resumes failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	analyses, err := s.ranker.Rank(ctx, req.Description, resumes)
	if err != nil {
		s.logger.Error("ranking failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "scoring is unavailable"})
		return
	}

	c.JSON(http.StatusOK, analyses)
}

func (s *Server) listResumes(c *gin.Context) {
	filter := store.ListFilter{
		Query:  c.Query("q"),
		City:   c.Query("city"),
		Offset: intQuery(c, "offset", 0),
		Limit:  intQuery(c, "limit", 100),
	}

	if raw := c.Query("exp_min"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.ExpMin = &v
		}
	}
	if raw := c.Query("exp_max"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.ExpMax = &v
		}
	}

	resumes, err := s.store.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}

	total, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": resumes, "total": total})
}

func (s *Server) getResume(c *gin.Context) {
	id, ok := s.resumeID(c, "id")
	if !ok {
		return
	}

	resume, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resume)
}

func (s *Server) updateResume(c *gin.Context) {
	id, ok := s.resumeID(c, "id")
	if !ok {
		return
	}

	var update store.ResumeUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update payload"})
		return
	}

	resume, err := s.store.Update(c.Request.Context(), id, update)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resume)
}

func (s *Server) deleteResume(c *gin.Context) {
	id, ok := s.resumeID(c, "id")
	if !ok {
		return
	}

	deleted, err := s.store.Delete(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) resumeDuplicates(c *gin.Context) {
	id, ok := s.resumeID(c, "id")
	if !ok {
		return
	}

	links, err := s.store.DuplicatesFor(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if links == nil {
		links = []*store.Duplicate{}
	}

	c.JSON(http.StatusOK, links)
}

func (s *Server) duplicateCandidates(c *gin.Context) {
	id, ok := s.resumeID(c, "id")
	if !ok {
		return
	}

	candidates, err := s.store.FindDuplicateCandidates(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if candidates == nil {
		candidates = []*store.Resume{}
	}

	c.JSON(http.StatusOK, candidates)
}

func (s *Server) markDuplicate(c *gin.Context) {
	id, ok := s.resumeID(c, "id")
	if !ok {
		return
	}
	dup, ok := s.resumeID(c, "dup")
	if !ok {
		return
	}

	link, err := s.store.MarkDuplicate(c.Request.Context(), id, dup)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

func (s *Server) resumeID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(param)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed resume id"})
		return uuid.Nil, false
	}
	return id, true
}

// fail maps store errors onto HTTP statuses without leaking internals.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, store.ErrSelfDuplicate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot link a resume to itself"})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
