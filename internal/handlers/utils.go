package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/sirupsen/logrus"
)

const maxBody = 1 << 16

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// conflictBody carries the resource state re-read by the losing claim so the
// client can ask the user to pick again.
type conflictBody struct {
	Error      string             `json:"error"`
	Kind       arena.ResourceKind `json:"kind,omitempty"`
	ResourceID string             `json:"resource_id,omitempty"`
	Holder     string             `json:"holder,omitempty"`
}

// writeError maps arena errors onto HTTP statuses:
// AlreadyClaimed 409, PreconditionFailed 422, NotFound 404,
// StoreUnavailable 503 (retryable), anything else 500.
func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	var conflict *arena.ClaimConflict
	switch {
	case errors.As(err, &conflict):
		body := conflictBody{Error: err.Error(), Kind: conflict.Kind, ResourceID: conflict.ResourceID.String()}
		if conflict.Holder != nil {
			body.Holder = conflict.Holder.String()
		}
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, arena.ErrAlreadyClaimed):
		writeJSON(w, http.StatusConflict, errorBody{err.Error()})
	case errors.Is(err, arena.ErrPreconditionFailed):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{err.Error()})
	case errors.Is(err, arena.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{err.Error()})
	case errors.Is(err, arena.ErrStoreUnavailable):
		logger.WithError(err).Warn("store unavailable")
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{"store unavailable, retry"})
	default:
		logger.WithError(err).Error("unhandled arena error")
		writeJSON(w, http.StatusInternalServerError, errorBody{"internal error"})
	}
}
