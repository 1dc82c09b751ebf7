package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/pkg/logger"
)

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorEnvelope is the stable shape every failed command returns (§6 "Error
// envelope"): a typed code from the §7 taxonomy plus a human message.
type errorEnvelope struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperrors.Kind         `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeServiceError translates any error returned from a service call into
// the error envelope, logging the fault when it's Internal (§7
// "Internal...MUST log the originating fault").
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.Kind == apperrors.Internal && log != nil {
			log.WithError(err).Error("internal error serving command")
		}
		writeJSON(w, svcErr.HTTPStatus(), errorEnvelope{
			Error: errorDetail{Code: svcErr.Kind, Message: apperrors.CanonicalMessage(svcErr.Kind), Details: svcErr.Details},
		})
		return
	}
	if log != nil {
		log.WithError(err).Error("unclassified error serving command")
	}
	writeJSON(w, http.StatusInternalServerError, errorEnvelope{
		Error: errorDetail{Code: apperrors.Internal, Message: apperrors.CanonicalMessage(apperrors.Internal)},
	})
}

func writeValidationError(w http.ResponseWriter, field, reason string) {
	err := apperrors.NewValidation(field, reason)
	writeJSON(w, err.HTTPStatus(), errorEnvelope{
		Error: errorDetail{Code: err.Kind, Message: apperrors.CanonicalMessage(err.Kind), Details: err.Details},
	})
}
