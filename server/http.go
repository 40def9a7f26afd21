// Package server exposes the aggregation engine over a JSON HTTP API.
// It is a thin wrapper: query parsing, serialization, and nothing else.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/govlens/govlens/proposal"
)

// invalidBlockNumberMessage is the client-error body for a cutoff that
// is not an integer.
const invalidBlockNumberMessage = "Invalid type for block number!"

// Server handles proposal API requests.
type Server struct {
	aggregator *proposal.Aggregator
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server around the given aggregator.
func New(aggregator *proposal.Aggregator, opts ...Option) *Server {
	s := &Server{
		aggregator: aggregator,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RegisterHTTPHandlers registers the API handlers under the given
// prefix. Handlers are registered as:
//
//	GET <prefix>/proposals
//	GET <prefix>/healthz
func (s *Server) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	// Normalise: ensure leading slash and trailing slash.
	if len(prefix) == 0 || prefix[0] != '/' {
		prefix = "/" + prefix
	}
	if prefix[len(prefix)-1] != '/' {
		prefix = prefix + "/"
	}

	mux.HandleFunc(prefix+"proposals", s.handleProposals)
	mux.HandleFunc(prefix+"healthz", s.handleHealthz)
}

// proposalsResponse is the JSON response for GET /proposals.
type proposalsResponse struct {
	Proposals       []proposal.Proposal `json:"proposals"`
	BlockNumber     uint64              `json:"blockNumber"`
	FailedPlatforms []string            `json:"failedPlatforms,omitempty"`
}

// messageResponse is a client-error response body.
type messageResponse struct {
	Message string `json:"message"`
}

// errorResponse is a server-side error response body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleProposals handles GET /proposals.
//
// Query parameters:
//
//	blockNumber — optional explicit cutoff; must parse as an unsigned
//	              integer, otherwise 400 with an explicit message and
//	              no upstream calls.
//	platforms   — optional platform filter, case-insensitive; may be
//	              given once or repeated.
func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.New().String()
	start := time.Now()
	query := r.URL.Query()

	var cutoff *uint64
	if raw := query.Get("blockNumber"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.logger.Debug("Rejected block number",
				"request_id", requestID,
				"block_number", raw)
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: invalidBlockNumberMessage})
			return
		}
		cutoff = &parsed
	} else if _, present := query["blockNumber"]; present {
		// Present but empty is just as unparseable.
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: invalidBlockNumberMessage})
		return
	}

	platforms := query["platforms"]

	result, err := s.aggregator.Aggregate(r.Context(), cutoff, platforms)
	if err != nil {
		s.logger.Error("Aggregation failed",
			"request_id", requestID,
			"error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:   "upstream_unavailable",
			Message: "could not resolve the current block height",
		})
		return
	}

	s.logger.Info("Served proposals",
		"request_id", requestID,
		"block_number", result.BlockNumber,
		"proposals", len(result.Proposals),
		"failed_platforms", len(result.Failed),
		"duration_ms", time.Since(start).Milliseconds())

	resp := proposalsResponse{
		Proposals:       result.Proposals,
		BlockNumber:     result.BlockNumber,
		FailedPlatforms: result.Failed,
	}
	if resp.Proposals == nil {
		resp.Proposals = []proposal.Proposal{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
