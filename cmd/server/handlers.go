package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

const healthTimeout = 5 * time.Second

type exportRequest struct {
	FileName string `json:"fileName"`
	Upload   bool   `json:"upload"`
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := healthReport{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			zap.S().Warnw("health check failed", "check", name, "error", err)
			report.Status = "degraded"
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// handleExports handles GET and POST /api/v1/exports
func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeSuccess(w, http.StatusOK, map[string]any{"active": s.jobs.Active()})
	case http.MethodPost:
		s.handleStartExport(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleStartExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := readJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	res, err := s.exporter.Run(r.Context(), pim.ExportRequest{FileName: req.FileName, Upload: req.Upload})
	if err != nil {
		zap.S().Errorw("export failed", "error", err)
		status := http.StatusInternalServerError
		if pim.IsValidationError(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
