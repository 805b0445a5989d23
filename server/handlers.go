package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/deepnoodle-ai/hotpath/dis"
	hperrors "github.com/deepnoodle-ai/hotpath/errors"
	"github.com/deepnoodle-ai/hotpath/hotspot"
	"github.com/deepnoodle-ai/hotpath/jit"
	"github.com/go-chi/chi/v5"
)

type executeRequest struct {
	Code string `json:"code"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type statsResponse struct {
	hotspot.Stats
	AverageExecutionTime   time.Duration `json:"average_execution_time_ns"`
	AverageCompilationTime time.Duration `json:"average_compilation_time_ns"`
	CompiledRatio          float64       `json:"compiled_ratio"`
	HotThreshold           uint64        `json:"hot_threshold"`
	MaxEntries             int           `json:"max_entries"`
	Mode                   jit.Mode      `json:"mode"`
}

type instructionResponse struct {
	Offset     int    `json:"offset"`
	Bytes      string `json:"bytes"`
	Text       string `json:"text"`
	Annotation string `json:"annotation,omitempty"`
}

type codeResponse struct {
	Fingerprint hotspot.Fingerprint   `json:"fingerprint"`
	Size        int                   `json:"size"`
	Variables   []string              `json:"variables"`
	Hex         string                `json:"hex"`
	Listing     []instructionResponse `json:"listing"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error to a status code. Errors with a code are
// the caller's fault; busy asks the caller to retry.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error(), Code: string(hperrors.CodeOf(err))}
	switch {
	case errors.Is(err, hperrors.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case errors.Is(err, jit.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		writeJSON(w, http.StatusRequestTimeout, resp)
	case resp.Code != "":
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		s.log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("internal error")
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	body := http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	res, err := s.engine.Execute(r.Context(), req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg := s.engine.Config()
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:                  stats,
		AverageExecutionTime:   stats.AverageExecutionTime(),
		AverageCompilationTime: stats.AverageCompilationTime(),
		CompiledRatio:          stats.CompiledRatio(),
		HotThreshold:           cfg.HotThreshold,
		MaxEntries:             cfg.MaxEntries,
		Mode:                   cfg.Mode,
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.CacheInfo(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	fp, err := hotspot.ParseFingerprint(chi.URLParam(r, "fingerprint"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	art, err := s.engine.Artifact(r.Context(), fp)
	if errors.Is(err, jit.ErrNotCompiled) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	instructions, err := dis.Disassemble(art)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := codeResponse{
		Fingerprint: fp,
		Size:        art.Size(),
		Variables:   art.Layout.Names(),
		Hex:         dis.HexDump(art.Code),
	}
	for _, instr := range instructions {
		resp.Listing = append(resp.Listing, instructionResponse{
			Offset:     instr.Offset,
			Bytes:      dis.FormatBytes(instr.Bytes),
			Text:       instr.Text,
			Annotation: instr.Annotation,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reset(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
