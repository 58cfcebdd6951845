package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/modelsite/modelsite-go/pkg/history"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// saveResultFields are the form fields of POST /save-model-result
var saveResultFields = []string{"username", "dataset_name", "model_type", "target_column", "metrics"}

// HistoryHandler handles saved model runs
type HistoryHandler struct {
	service *history.Service
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(service *history.Service) *HistoryHandler {
	return &HistoryHandler{
		service: service,
	}
}

// HandleSave handles POST /save-model-result
func (h *HistoryHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeValidationResponse(w, fmt.Sprintf("invalid form: %v", err))
		return
	}
	for _, field := range saveResultFields {
		if _, ok := r.Form[field]; !ok {
			writeValidationResponse(w, fmt.Sprintf("%s is required", field))
			return
		}
	}

	_, err := h.service.Save(r.Context(), &models.SaveResultRequest{
		Username:     r.FormValue("username"),
		DatasetName:  r.FormValue("dataset_name"),
		ModelType:    r.FormValue("model_type"),
		TargetColumn: r.FormValue("target_column"),
		Metrics:      r.FormValue("metrics"),
	})
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Model result saved successfully"})
}

// HandleList handles GET /model-history/{username}
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	entries, err := h.service.List(r.Context(), username)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"history": entries})
}

// HandleClear handles DELETE /clear-model-history/{username}
func (h *HistoryHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if _, err := h.service.Clear(r.Context(), username); err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("All model history cleared for %s", username)})
}
