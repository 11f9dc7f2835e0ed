package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	blogerrors "github.com/EHam1/very-professional-blog/internal/errors"
	"github.com/EHam1/very-professional-blog/internal/eventstore"
	"github.com/EHam1/very-professional-blog/internal/observability"
	"github.com/EHam1/very-professional-blog/internal/sink"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

// LogPath is the sink endpoint.
const LogPath = "/api/log"

// maxBodyBytes bounds an event request body.
const maxBodyBytes = 64 << 10

// LogResponse is the body of a successful POST /api/log.
type LogResponse struct {
	Success bool             `json:"success"`
	Data    []eventstore.Row `json:"data,omitempty"`
	Message string           `json:"message,omitempty"`
}

// LogHandler handles POST /api/log.
type LogHandler struct {
	sink   *sink.Sink
	logger *slog.Logger
}

// NewLogHandler creates the sink endpoint handler.
func NewLogHandler(s *sink.Sink, logger *slog.Logger) *LogHandler {
	return &LogHandler{sink: s, logger: observability.OrDiscard(logger)}
}

// ServeHTTP accepts one event record.
//
//	405 method other than POST
//	400 malformed body, or event/timestamp missing
//	200 persisted ({success, data}) or storage not configured ({success, message})
//	500 storage failure ({error, details})
func (h *LogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		h.sink.Metrics().Rejected(observability.ReasonMethod)
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "", requestID)
		return
	}

	var rec types.EventRecord
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&rec); err != nil && !errors.Is(err, io.EOF) {
		h.sink.Metrics().Rejected(observability.ReasonMalformedBody)
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error(), requestID)
		return
	}

	res, err := h.sink.Accept(r.Context(), rec)
	if err != nil {
		h.writeSinkError(w, err, requestID)
		return
	}

	if !res.Persisted {
		writeJSON(w, http.StatusOK, LogResponse{Success: true, Message: res.Message})
		return
	}
	writeJSON(w, http.StatusOK, LogResponse{Success: true, Data: res.Rows})
}

func (h *LogHandler) writeSinkError(w http.ResponseWriter, err error, requestID string) {
	var be *blogerrors.BlogError
	if !errors.As(err, &be) {
		h.logger.Error("unexpected sink error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error", "", requestID)
		return
	}

	switch be.Category {
	case blogerrors.ErrCategoryValidation:
		writeError(w, http.StatusBadRequest, be.Message, "", requestID)
	case blogerrors.ErrCategoryStorage:
		details := ""
		if be.Cause != nil {
			details = be.Cause.Error()
		}
		writeError(w, http.StatusInternalServerError, be.Message, details, requestID)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", "", requestID)
	}
}
