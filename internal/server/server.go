package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"link_checker/internal/app"
	"link_checker/internal/config"
	"link_checker/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HandlerFactory builds the handler of a new batch around its observer.
type HandlerFactory func(observer app.Observer) *app.Handler

// HistoryReader serves stored link checks. It may be nil.
type HistoryReader interface {
	GetLinkStatus(ctx context.Context, url string) (*models.LinkStatus, error)
	GetHistory(ctx context.Context, url string, limit int) ([]models.CheckRecord, error)
}

// Server exposes batches over HTTP so a remote host can start them, follow
// their signals and answer retry prompts.
type Server struct {
	router  *gin.Engine
	addr    string
	factory HandlerFactory
	history HistoryReader
	log     logrus.FieldLogger

	baseCtx context.Context
	mu      sync.RWMutex
	batches map[string]*batch
	wg      sync.WaitGroup
}

func NewServer(cfg config.ServerConfig, factory HandlerFactory, history HistoryReader, log logrus.FieldLogger) *Server {
	s := &Server{
		router:  gin.New(),
		addr:    cfg.Addr,
		factory: factory,
		history: history,
		log:     log,
		baseCtx: context.Background(),
		batches: make(map[string]*batch),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.POST("/batches", s.createBatch)
		api.GET("/batches", s.listBatches)
		api.GET("/batches/:id", s.getBatch)
		api.GET("/batches/:id/events", s.getEvents)
		api.POST("/batches/:id/decision", s.decide)
		api.POST("/batches/:id/cancel", s.cancelBatch)

		api.GET("/links/status", s.linkStatus)
		api.GET("/links/history", s.linkHistory)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx ends, then shuts down and waits for running batches.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}

type createBatchRequest struct {
	Units []string `json:"units" binding:"required,min=1"`
}

func (s *Server) createBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b := &batch{
		id:      uuid.NewString(),
		units:   req.Units,
		created: time.Now(),
	}
	b.handler = s.factory(b)

	s.mu.Lock()
	s.batches[b.id] = b
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := b.handler.Run(s.baseCtx, b.units)
		b.finish(err)
		s.log.WithField("batch", b.id).Infof("batch finished: %v", err)
	}()

	c.JSON(http.StatusAccepted, gin.H{"id": b.id})
}

func (s *Server) listBatches(c *gin.Context) {
	s.mu.RLock()
	views := make([]BatchView, 0, len(s.batches))
	for _, b := range s.batches {
		views = append(views, b.view())
	}
	s.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool { return views[i].Created.Before(views[j].Created) })
	c.JSON(http.StatusOK, views)
}

func (s *Server) lookup(c *gin.Context) (*batch, bool) {
	s.mu.RLock()
	b, ok := s.batches[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
	}
	return b, ok
}

func (s *Server) getBatch(c *gin.Context) {
	b, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, b.view())
}

func (s *Server) getEvents(c *gin.Context) {
	b, ok := s.lookup(c)
	if !ok {
		return
	}
	since, err := strconv.Atoi(c.DefaultQuery("since", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a number"})
		return
	}
	c.JSON(http.StatusOK, b.eventsSince(since))
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

func (s *Server) decide(c *gin.Context) {
	b, ok := s.lookup(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, ok := models.ParseDecision(req.Decision)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be retry or abandon"})
		return
	}

	if !b.resolve(d) {
		c.JSON(http.StatusConflict, gin.H{"error": "no decision is pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decision": d.String()})
}

func (s *Server) cancelBatch(c *gin.Context) {
	b, ok := s.lookup(c)
	if !ok {
		return
	}
	b.handler.Cancel()
	c.JSON(http.StatusAccepted, b.view())
}

func (s *Server) linkStatus(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "history is disabled"})
		return
	}
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	status, err := s.history.GetLinkStatus(c.Request.Context(), url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "link was never checked"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) linkHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "history is disabled"})
		return
	}
	url := c.Query("url")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if url == "" || err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and a positive limit are required"})
		return
	}

	records, err := s.history.GetHistory(c.Request.Context(), url, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}
