package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"manas-server/pkg/errors"
	"manas-server/pkg/pipeline"
)

const maxAssessBodyBytes = 1 << 20 // 1 MiB

// AssessHandler exposes the per-turn assessment pipeline over HTTP.
type AssessHandler struct {
	logger *logrus.Logger
	engine *pipeline.Engine
}

// NewAssessHandler creates the handler for POST /api/v1/assess.
func NewAssessHandler(logger *logrus.Logger, engine *pipeline.Engine) *AssessHandler {
	return &AssessHandler{
		logger: logger,
		engine: engine,
	}
}

// Register wires the handler into the server.
func (h *AssessHandler) Register(server *Server) {
	server.RegisterHandler("/api/v1/assess", h.ServeHTTP)
}

// ServeHTTP decodes the turn payload, runs the pipeline and returns the
// full result.
func (h *AssessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var input pipeline.TurnInput
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxAssessBodyBytes))
	if err := decoder.Decode(&input); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.ProcessTurn(r.Context(), input)
	if err != nil {
		h.logger.WithError(err).WithField("turn_id", input.TurnID).Warn("Turn processing failed")

		switch {
		case errors.IsErrorType(err, errors.ErrMissingModality):
			writeErrorResponse(w, http.StatusBadRequest, "turn carries no modality input")
		case errors.IsErrorType(err, context.Canceled), errors.IsErrorType(err, context.DeadlineExceeded):
			writeErrorResponse(w, http.StatusRequestTimeout, "request canceled")
		default:
			writeErrorResponse(w, http.StatusInternalServerError, "turn processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
