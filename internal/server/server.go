// Package server exposes the attendance pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ccollicutt/attendlog/internal/pipeline"
	"github.com/ccollicutt/attendlog/internal/store"
	"github.com/ccollicutt/attendlog/pkg/attendance"
	"github.com/ccollicutt/attendlog/pkg/config"
	"github.com/ccollicutt/attendlog/pkg/output"
	"github.com/ccollicutt/attendlog/pkg/table"
)

// Form field names.
const (
	FieldLog        = "log"
	FieldLogAlias   = "zoom_csv"
	FieldRoster     = "roster"
	FieldParams     = "params"
	FieldExemptions = "exemptions"
)

// MaxUploadBytes caps the multipart body.
const MaxUploadBytes = 32 << 20

// ResultFileName is the attachment name of the processed workbook.
const ResultFileName = "attendance_processed.xlsx"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// requestIDKey is the gin context key holding the request ID.
const requestIDKey = "request_id"

// Archive is the subset of the run archive the server uses.
type Archive interface {
	SaveRun(ctx context.Context, report *output.Report) (bool, error)
	RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	Ping(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	runner  *pipeline.Runner
	archive Archive
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithArchive enables run archiving and the archive endpoints.
func WithArchive(a Archive) Option {
	return func(s *Server) {
		s.archive = a
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server around a runner.
func New(runner *pipeline.Runner, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router wires the endpoints.
// Always: /api/health, /api/process, /api/keys
// With an archive: /api/ready, /api/runs
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = MaxUploadBytes

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.POST("/process", s.handleProcess)
	api.POST("/keys", s.handleKeys)

	if s.archive != nil {
		api.GET("/ready", s.handleReady)
		api.GET("/runs", s.handleRuns)
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		s.logger.Info("request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleProcess(c *gin.Context) {
	req, ok := s.readRequest(c, true)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	report, result, err := s.runner.Process(ctx, req)
	if err != nil {
		s.fail(c, err)
		return
	}

	var body bytes.Buffer
	if err := output.NewXLSXFormatter(output.FormatOptions{}).Format(ctx, report, &body); err != nil {
		s.fail(c, err)
		return
	}

	meta, err := json.Marshal(result.Meta)
	if err != nil {
		s.fail(c, err)
		return
	}

	if s.archive != nil {
		if _, err := s.archive.SaveRun(ctx, report); err != nil {
			s.logger.Warn("archiving run failed",
				"request_id", c.GetString(requestIDKey), "run_id", result.Meta.RunID, "error", err)
		}
	}

	c.Header("Content-Disposition", "attachment; filename="+ResultFileName)
	c.Header("X-Attendance-Meta", string(meta))
	c.Data(http.StatusOK, xlsxContentType, body.Bytes())
}

func (s *Server) handleKeys(c *gin.Context) {
	req, ok := s.readRequest(c, false)
	if !ok {
		return
	}

	keys, err := s.runner.Keys(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	if err := s.archive.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleRuns(c *gin.Context) {
	runs, err := s.archive.RecentRuns(c.Request.Context(), 20)
	if err != nil {
		s.logger.Error("listing runs failed", "request_id", c.GetString(requestIDKey), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing runs failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// readRequest pulls the uploads out of the multipart form. Malformed params
// or exemptions JSON fall back to empty values.
func (s *Server) readRequest(c *gin.Context, withRoster bool) (pipeline.Request, bool) {
	var req pipeline.Request

	header, err := c.FormFile(FieldLog)
	if err != nil {
		header, err = c.FormFile(FieldLogAlias)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing log file (field \"log\")"})
		return req, false
	}
	req.LogName = header.Filename
	if req.LogData, err = readUpload(header); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read log file"})
		return req, false
	}

	if withRoster {
		if header, err := c.FormFile(FieldRoster); err == nil {
			req.RosterName = header.Filename
			if req.RosterData, err = readUpload(header); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "could not read roster file"})
				return req, false
			}
		}
	}

	id := c.GetString(requestIDKey)
	if raw := c.PostForm(FieldParams); raw != "" {
		params, err := config.DecodeParams([]byte(raw))
		if err != nil {
			s.logger.Warn("ignoring malformed params", "request_id", id, "error", err)
			params = config.Params{}
		}
		req.Params = params
	}
	if raw := c.PostForm(FieldExemptions); raw != "" {
		ex, err := config.DecodeExemptions([]byte(raw))
		if err != nil {
			s.logger.Warn("ignoring malformed exemptions", "request_id", id, "error", err)
			ex = config.Exemptions{}
		}
		req.Exemptions = ex
	}

	return req, true
}

// fail maps pipeline errors to responses: input and config problems are the
// caller's fault, anything else is a server error.
func (s *Server) fail(c *gin.Context, err error) {
	var inputErr *attendance.InputError
	var cfgErr *config.ConfigError
	switch {
	case errors.As(err, &inputErr), errors.As(err, &cfgErr),
		errors.Is(err, pipeline.ErrInvalidParams), errors.Is(err, table.ErrNoHeader):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "request canceled"})
	default:
		s.logger.Error("processing failed", "request_id", c.GetString(requestIDKey), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
	}
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, MaxUploadBytes))
}
