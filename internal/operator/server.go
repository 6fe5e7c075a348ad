// Package operator exposes the summarization engine over a small JSON HTTP API.
package operator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joelkehle/medlite/internal/docextract"
	"github.com/joelkehle/medlite/internal/medsummary"
	"github.com/joelkehle/medlite/internal/samples"
	"github.com/sirupsen/logrus"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	// multipart framing on top of the file itself
	uploadOverhead = 1 << 20
)

// Summarizer is the part of medsummary.Engine the server needs.
type Summarizer interface {
	Run(ctx context.Context, text string) medsummary.Outcome
	CurrentTier() medsummary.Tier
	BackendName() string
}

type Options struct {
	SamplesDir     string
	OutputDir      string
	MaxUploadBytes int64
	Renderer       ReportPDFRenderer
	Logger         logrus.FieldLogger
	Now            func() time.Time
}

type Server struct {
	engine      Summarizer
	samplesDir  string
	outputDir   string
	maxUpload   int64
	pdfRenderer ReportPDFRenderer
	logger      logrus.FieldLogger
	now         func() time.Time
	router      *gin.Engine
}

type summarizeRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

type summarizeResponse struct {
	Result       medsummary.SummaryResult `json:"result"`
	Tier         medsummary.Tier          `json:"tier,omitempty"`
	Fallback     bool                     `json:"fallback"`
	ShortCircuit bool                     `json:"short_circuit"`
	Filename     string                   `json:"filename,omitempty"`
	Stats        medsummary.ReportStats   `json:"stats"`
	DurationMS   int64                    `json:"duration_ms"`
	RequestID    string                   `json:"request_id"`
}

type exportRequest struct {
	Result   medsummary.SummaryResult `json:"result"`
	Filename string                   `json:"filename"`
	Tier     medsummary.Tier          `json:"tier"`
}

func NewServer(engine Summarizer, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = docextract.MaxFileBytes
	}
	s := &Server{
		engine:      engine,
		samplesDir:  opts.SamplesDir,
		outputDir:   opts.OutputDir,
		maxUpload:   opts.MaxUploadBytes,
		pdfRenderer: opts.Renderer,
		logger:      opts.Logger,
		now:         opts.Now,
	}

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(s.logger))
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/summarize", s.handleSummarize)
		v1.GET("/samples", s.handleListSamples)
		v1.GET("/samples/:name", s.handleGetSample)
		v1.POST("/samples/:name/summarize", s.handleSummarizeSample)
		v1.POST("/export/text", s.handleExportText)
		v1.POST("/export/pdf", s.handleExportPDF)
	}
	s.router = router
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLogMiddleware(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  c.GetString(requestIDKey),
			"client_ip":   c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Info("request")
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "request_id": c.GetString(requestIDKey)})
}

func (s *Server) handleHealth(c *gin.Context) {
	tier := string(s.engine.CurrentTier())
	if tier == "" {
		tier = "pending"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"tier":    tier,
		"backend": s.engine.BackendName(),
	})
}

func (s *Server) handleSummarize(c *gin.Context) {
	var text, filename string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+uploadOverhead)
		header, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(c, http.StatusRequestEntityTooLarge, "upload too large")
				return
			}
			writeError(c, http.StatusBadRequest, "file field is required")
			return
		}
		if header.Size > s.maxUpload {
			writeError(c, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		f, err := header.Open()
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid upload")
			return
		}
		defer f.Close()
		res, err := docextract.ExtractUpload(c.Request.Context(), header.Filename, f)
		if err != nil {
			s.writeExtractError(c, err)
			return
		}
		text, filename = res.Text, filepath.Base(header.Filename)
	} else {
		var req summarizeRequest
		if !s.bindJSON(c, &req) {
			return
		}
		if int64(len(req.Text)) > s.maxUpload {
			writeError(c, http.StatusRequestEntityTooLarge, "report text too large")
			return
		}
		text, filename = req.Text, req.Filename
	}
	if strings.TrimSpace(text) == "" {
		writeError(c, http.StatusBadRequest, "report text is required")
		return
	}
	s.respondSummary(c, text, filename)
}

// bindJSON decodes a JSON body capped at the upload limit plus encoding slack.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+uploadOverhead)
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeExtractError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, docextract.ErrUnsupportedType):
		writeError(c, http.StatusUnsupportedMediaType, "only .txt and .pdf reports are supported")
	case errors.Is(err, docextract.ErrTooLarge):
		writeError(c, http.StatusRequestEntityTooLarge, "upload too large")
	case errors.Is(err, docextract.ErrNoText):
		writeError(c, http.StatusUnprocessableEntity, "no text could be extracted from the file")
	default:
		s.logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("extract upload")
		writeError(c, http.StatusInternalServerError, "failed to read upload")
	}
}

func (s *Server) respondSummary(c *gin.Context, text, filename string) {
	out := s.engine.Run(c.Request.Context(), text)
	c.JSON(http.StatusOK, summarizeResponse{
		Result:       out.Result,
		Tier:         out.Tier,
		Fallback:     out.Fallback,
		ShortCircuit: out.ShortCircuit,
		Filename:     filename,
		Stats:        medsummary.ComputeStats(text),
		DurationMS:   out.Duration.Milliseconds(),
		RequestID:    c.GetString(requestIDKey),
	})
}

func (s *Server) handleListSamples(c *gin.Context) {
	entries, err := samples.List(s.samplesDir)
	if err != nil {
		s.logger.WithError(err).Error("list samples")
		writeError(c, http.StatusInternalServerError, "failed to list samples")
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": entries})
}

func (s *Server) loadSample(c *gin.Context) (string, bool) {
	text, err := samples.Load(c.Request.Context(), s.samplesDir, c.Param("name"))
	switch {
	case err == nil:
		return text, true
	case errors.Is(err, samples.ErrInvalidName):
		writeError(c, http.StatusBadRequest, "invalid sample name")
	case errors.Is(err, samples.ErrNotFound):
		writeError(c, http.StatusNotFound, "sample not found")
	default:
		s.logger.WithError(err).Error("load sample")
		writeError(c, http.StatusInternalServerError, "failed to load sample")
	}
	return "", false
}

func (s *Server) handleGetSample(c *gin.Context) {
	text, ok := s.loadSample(c)
	if !ok {
		return
	}
	name := strings.TrimSuffix(c.Param("name"), ".txt")
	c.JSON(http.StatusOK, gin.H{
		"name":  name,
		"title": samples.Title(name),
		"text":  text,
		"stats": medsummary.ComputeStats(text),
	})
}

func (s *Server) handleSummarizeSample(c *gin.Context) {
	text, ok := s.loadSample(c)
	if !ok {
		return
	}
	s.respondSummary(c, text, strings.TrimSuffix(c.Param("name"), ".txt")+".txt")
}

func (s *Server) bindExport(c *gin.Context) (medsummary.SummaryResult, medsummary.ReportMeta, bool) {
	var req exportRequest
	if !s.bindJSON(c, &req) {
		return medsummary.SummaryResult{}, medsummary.ReportMeta{}, false
	}
	if strings.TrimSpace(req.Result.Summary) == "" && strings.TrimSpace(req.Result.PatientFriendly) == "" {
		writeError(c, http.StatusBadRequest, "result is required")
		return medsummary.SummaryResult{}, medsummary.ReportMeta{}, false
	}
	filename := req.Filename
	if filename == "" {
		filename = "report"
	}
	return req.Result, medsummary.ReportMeta{
		SourceFilename: filename,
		GeneratedAt:    s.now(),
		Tier:           req.Tier,
	}, true
}

func (s *Server) handleExportText(c *gin.Context) {
	res, meta, ok := s.bindExport(c)
	if !ok {
		return
	}
	path, err := medsummary.SaveSummaryFile(s.outputDir, res, meta)
	if err != nil {
		s.logger.WithError(err).Error("save summary file")
		writeError(c, http.StatusInternalServerError, "failed to save summary")
		return
	}
	s.logger.WithFields(logrus.Fields{"path": path, "request_id": c.GetString(requestIDKey)}).Info("summary saved")
	c.FileAttachment(path, filepath.Base(path))
}

func (s *Server) handleExportPDF(c *gin.Context) {
	if s.pdfRenderer == nil {
		writeError(c, http.StatusServiceUnavailable, "pdf renderer unavailable")
		return
	}
	res, meta, ok := s.bindExport(c)
	if !ok {
		return
	}
	pdf, err := s.pdfRenderer.Render(c.Request.Context(), medsummary.BuildMarkdown(res, meta))
	if err != nil {
		s.logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("render summary pdf")
		writeError(c, http.StatusInternalServerError, "failed to render pdf")
		return
	}
	name := strings.TrimSuffix(medsummary.SummaryFileName(meta.SourceFilename, meta.GeneratedAt), ".txt") + ".pdf"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
