package ui

import (
	"bytes"
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"metaboqc/domain/core"
	"metaboqc/domain/report"
	"metaboqc/internal"
	"metaboqc/internal/config"
	"metaboqc/internal/errors"
	"metaboqc/ports"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the report browser: an index page, JSON summaries of rendered
// reports and the Prometheus endpoint
type Server struct {
	router    *gin.Engine
	index     ports.ReportIndex
	browser   *Browser
	templates *template.Template
	logger    *internal.Logger
}

// NewServer creates a server over the reports rendered into outputDir.
func NewServer(index ports.ReportIndex, outputDir string) (*Server, error) {
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("2006-01-02 15:04")
		},
		"kindLabel": func(k report.Kind) string {
			return strings.ReplaceAll(string(k), "_", " ")
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		router:    gin.Default(),
		index:     index,
		browser:   NewBrowser(outputDir),
		templates: templates,
		logger:    internal.DefaultLogger.With("Server"),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	api.GET("/reports", s.handleListReports)
	api.GET("/reports/:id", s.handleGetReport)

	// rendered HTML, JSON, XLSX and graphics are served by the browser
	s.router.GET("/reports/*path", gin.WrapH(http.StripPrefix("/reports", s.browser)))
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Report server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down report server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIndex(c *gin.Context) {
	entries, err := s.filteredEntries(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.renderTemplate(c, "index.html", gin.H{
		"Reports": entries,
		"Kind":    c.Query("kind"),
		"Dataset": c.Query("dataset"),
	})
}

func (s *Server) handleListReports(c *gin.Context) {
	entries, err := s.filteredEntries(c)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleGetReport(c *gin.Context) {
	id := core.ReportID(c.Param("id"))
	items, err := s.index.Get(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// filteredEntries lists reports, narrowed by the optional kind and dataset
// query parameters.
func (s *Server) filteredEntries(c *gin.Context) ([]ports.ReportEntry, error) {
	entries, err := s.index.List(c.Request.Context())
	if err != nil {
		return nil, err
	}
	kind, ds := c.Query("kind"), c.Query("dataset")
	if kind == "" && ds == "" {
		return entries, nil
	}
	out := entries[:0:0]
	for _, e := range entries {
		if kind != "" && string(e.Kind) != kind {
			continue
		}
		if ds != "" && e.Dataset != ds {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	appErr := errors.FromDomain(err)
	status := statusFor(errors.GetCode(appErr))
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": appErr.Error(),
		"code":  errors.GetCode(appErr),
	})
}

func statusFor(code string) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeValidationError, errors.CodeInvalidInput, errors.CodeConfigInvalid:
		return http.StatusBadRequest
	case errors.CodePrecondition, errors.CodeSchemaError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// renderTemplate executes into a buffer first so template errors still
// produce a clean 500.
func (s *Server) renderTemplate(c *gin.Context, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Template error for %s: %v", name, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "template rendering failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
