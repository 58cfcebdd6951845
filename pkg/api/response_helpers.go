package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/modelsite/modelsite-go/pkg/logging"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// writeJSONResponse writes a JSON response with the given status code. A
// payload that cannot be encoded is replaced by a 200 error body.
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		statusCode = http.StatusOK
		body, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("Failed to encode response: %v", err)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(append(body, '\n'))
}

// writeErrorResponse reports a failed operation. Clients of this API expect
// failures as a 200 response carrying an error field.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())
	if models.ErrorCode(err) == models.EInternal {
		log.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		log.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"error": err.Error()})
}

// writeValidationResponse writes a 422 for a request body or form that does
// not have the required shape
func writeValidationResponse(w http.ResponseWriter, message string) {
	writeJSONResponse(w, http.StatusUnprocessableEntity, map[string]string{"error": message})
}

// decodeJSONBody decodes the request body into dst
func decodeJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
