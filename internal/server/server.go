// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/config"
	"github.com/local/examparser/internal/errs"
	"github.com/local/examparser/internal/metrics"
	"github.com/local/examparser/internal/models"
	"github.com/local/examparser/internal/pdfdoc"
	"github.com/local/examparser/internal/pipeline"
	"github.com/local/examparser/internal/store"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, examPath, answerKeyPath, imagesDir string, opts pipeline.Options) (pipeline.Result, error)
}

// Dependencies wires a Server. Status is optional.
type Dependencies struct {
	Runner Runner
	Status store.Store
	Config config.ServerConfig
	// WorkDir holds per-request temp directories; "" uses os.TempDir.
	WorkDir string
}

type Server struct {
	deps Dependencies
}

func New(deps Dependencies) *Server {
	return &Server{deps: deps}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /process-exam", s.requireKey(s.handleProcessExam))
	mux.HandleFunc("GET /runs/{id}", s.requireKey(s.handleRunStatus))
}

type errorResp struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// requireKey checks X-Api-Key against the configured secret.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expected := s.deps.Config.APISecretKey
		if expected == "" {
			writeJSON(w, http.StatusInternalServerError, errorResp{Status: "error", Message: "API_SECRET_KEY is not configured on the server."})
			return
		}
		got := r.Header.Get("X-Api-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			writeJSON(w, http.StatusForbidden, errorResp{Status: "error", Message: "Invalid or missing API key."})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleProcessExam(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.deps.Config.UploadMaxMB) << 20
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	if r.ContentLength > maxBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp{Status: "error", Message: "upload too large"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp{Status: "error", Message: "upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp{Status: "error", Message: "invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	tmp, err := os.MkdirTemp(s.deps.WorkDir, "exam_pipeline_")
	if err != nil {
		writeError(w, fmt.Errorf("create work dir: %w", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			log.Warn().Err(err).Str("dir", tmp).Msg("temp dir cleanup failed")
		}
	}()

	examPath, err := saveUpload(r, "exam_pdf", filepath.Join(tmp, "exam.pdf"))
	if err != nil {
		writeError(w, err)
		return
	}
	if examPath == "" {
		writeJSON(w, http.StatusBadRequest, errorResp{Status: "error", Message: "missing exam_pdf"})
		return
	}
	keyPath, err := saveUpload(r, "answer_key_pdf", filepath.Join(tmp, "answer_key.pdf"))
	if err != nil {
		writeError(w, err)
		return
	}

	runID := uuid.NewString()
	imagesDir := filepath.Join(tmp, "images")
	log.Info().
		Str("run_id", runID).
		Bool("answer_key", keyPath != "").
		Msg("processing uploaded exam")

	res, err := s.deps.Runner.Run(r.Context(), examPath, keyPath, imagesDir, pipeline.Options{RunID: runID})
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("pipeline failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ProcessingResponse{
		Status: "success",
		RunID:  runID,
		Data:   pipeline.BuildExamResponse(res.Exam, res.ImagesDir),
	})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.deps.Status == nil {
		writeJSON(w, http.StatusNotFound, errorResp{Status: "error", Message: "run status tracking disabled"})
		return
	}
	st, ok, err := s.deps.Status.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp{Status: "error", Message: "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// saveUpload copies the form file field to dest. A missing field returns
// "" and no error; a non-PDF upload is a Format error.
func saveUpload(r *http.Request, field, dest string) (string, error) {
	const op = "save_upload"
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", errs.E(errs.Format, op, fmt.Errorf("%s: %w", field, err))
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	if !pdfdoc.IsPDF(data) {
		return "", errs.Errorf(errs.Format, op, "%s must be a PDF file", field)
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return "", fmt.Errorf("store %s: %w", field, err)
	}
	return dest, nil
}

// StatusCode maps an error kind to its HTTP status.
func StatusCode(err error) int {
	switch errs.KindOf(err) {
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Format:
		return http.StatusUnprocessableEntity
	case errs.FatalDiagnostic:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusCode(err), errorResp{Status: "error", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}
