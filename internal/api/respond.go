package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string   `json:"error"`
	Kind  ucp.Kind `json:"kind,omitempty"`
}

// StatusFor maps an agent error onto an HTTP status.
func StatusFor(err error) int {
	switch ucp.KindOf(err) {
	case ucp.KindNotConnected:
		return http.StatusConflict
	case ucp.KindNotFound:
		return http.StatusNotFound
	case ucp.KindValidation:
		return http.StatusBadRequest
	case ucp.KindTransport, ucp.KindProtocol:
		return http.StatusBadGateway
	}
	if errors.Is(err, errReceiptsUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), errorResponse{Error: err.Error(), Kind: ucp.KindOf(err)})
}

func decodeBody(r *http.Request, op string, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return ucp.Validation(op, "invalid JSON body: %v", err)
	}
	return nil
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
