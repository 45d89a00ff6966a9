package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coverscan/policy-analyst/internal/document"
	"github.com/coverscan/policy-analyst/internal/pipeline"
	"github.com/coverscan/policy-analyst/internal/storage"
)

// AskRequest queries an already-indexed document by fingerprint.
type AskRequest struct {
	Fingerprint string   `json:"fingerprint" binding:"required"`
	Query       string   `json:"query"`
	Queries     []string `json:"queries"`
}

// handleAnalyze runs the full pipeline for one upload: multipart form with
// "file" (PDF) plus "query" (single) or repeated "queries" values.
func (s *Server) handleAnalyze(c *gin.Context) {
	queries := gatherQueries(c)
	if len(queries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}

	tmp, cleanup, err := s.saveUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer cleanup()

	filename := c.GetHeader("X-Filename")
	if filename == "" {
		filename = tmpFilename(c)
	}

	if len(queries) == 1 {
		result, err := s.pipeline.Process(c.Request.Context(), filename, tmp, queries[0])
		if err != nil {
			s.renderFailure(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	results, err := s.pipeline.ProcessAll(c.Request.Context(), filename, tmp, queries)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// handleUpload indexes a policy without asking anything, returning the
// session for subsequent /api/ask calls.
func (s *Server) handleUpload(c *gin.Context) {
	tmp, cleanup, err := s.saveUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer cleanup()

	doc, err := document.LoadPDF(tmpFilename(c), tmp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read PDF: " + err.Error()})
		return
	}

	session, err := s.pipeline.IndexDocument(c.Request.Context(), doc)
	if err != nil {
		s.renderFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// handleAsk answers one or more questions against an indexed document.
func (s *Server) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	queries := req.Queries
	if req.Query != "" {
		queries = append([]string{req.Query}, queries...)
	}
	if len(queries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}

	session, err := s.pipeline.LookupSession(c.Request.Context(), req.Fingerprint)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not indexed"})
			return
		}
		s.renderFailure(c, err)
		return
	}

	if len(queries) == 1 {
		result, err := s.pipeline.Ask(c.Request.Context(), session, queries[0])
		if err != nil {
			s.renderFailure(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	results := make([]*pipeline.Result, 0, len(queries))
	for _, q := range queries {
		result, err := s.pipeline.Ask(c.Request.Context(), session, q)
		if err != nil {
			s.renderFailure(c, err)
			return
		}
		results = append(results, result)
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// saveUpload validates the multipart "file" field and spools it to a temp
// file. The returned cleanup removes the temp file; it must run on every
// exit path.
func (s *Server) saveUpload(c *gin.Context) (io.Reader, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("missing file")
	}
	if header.Size > s.maxBytes {
		return nil, nil, fmt.Errorf("file too large (max %d bytes)", s.maxBytes)
	}
	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		return nil, nil, fmt.Errorf("only PDF files are accepted")
	}

	src, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload")
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "policy-*.pdf")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to buffer upload")
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	if _, err := io.Copy(tmp, src); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to buffer upload")
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to buffer upload")
	}

	c.Set("uploadFilename", header.Filename)
	return tmp, cleanup, nil
}

func tmpFilename(c *gin.Context) string {
	if v, ok := c.Get("uploadFilename"); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return "upload.pdf"
}

func gatherQueries(c *gin.Context) []string {
	var queries []string
	if q := strings.TrimSpace(c.PostForm("query")); q != "" {
		queries = append(queries, q)
	}
	for _, q := range c.PostFormArray("queries") {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries
}

// renderFailure converts a pipeline error into the tagged failure payload,
// with an HTTP status reflecting the failure class.
func (s *Server) renderFailure(c *gin.Context, err error) {
	failure := pipeline.FailureFrom(err)
	status := http.StatusInternalServerError
	switch pipeline.Kind(failure.Kind) {
	case pipeline.KindLoad, pipeline.KindConfiguration:
		status = http.StatusBadRequest
	case pipeline.KindParse:
		status = http.StatusUnprocessableEntity
	case pipeline.KindProvider:
		status = http.StatusBadGateway
	case pipeline.KindIndex:
		status = http.StatusServiceUnavailable
	}
	s.logger.Warn("Pipeline failed", "stage", failure.Stage, "kind", failure.Kind, "error", failure.Message)
	c.JSON(status, gin.H{"failure": failure})
}
