package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/qi-lang/qi/pkg/qiruntime"
)

// version is set via -ldflags at build time
var version = "dev"

// SetVersion sets the version string (called from main).
func SetVersion(v string) {
	version = v
}

// HealthResponse is the response for /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the response for /version.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CompileRequest is the body of POST /compile.
type CompileRequest struct {
	Source string `json:"source"`
	Name   string `json:"name"`
}

// CompileResponse carries the emitted IR and any lowering diagnostics.
type CompileResponse struct {
	IR          string   `json:"ir"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	ElapsedMs   int64    `json:"elapsed_ms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: version, Service: "qi"})
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	var req CompileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}
	name := req.Name
	if name == "" {
		name = "request.qi"
	}

	res, cerr := s.comp.Compile([]byte(req.Source), name)
	if res == nil {
		writeError(w, http.StatusUnprocessableEntity, cerr.Error())
		return
	}

	resp := CompileResponse{IR: res.IR, ElapsedMs: res.Elapsed.Milliseconds()}
	for _, d := range res.Diagnostics {
		resp.Diagnostics = append(resp.Diagnostics, d.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuntimeStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, qiruntime.GlobalStats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
