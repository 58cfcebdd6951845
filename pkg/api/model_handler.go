package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// multipartMemory is the part of a multipart body kept in memory before
// spilling to temporary files
const multipartMemory = 32 << 20

// ModelHandler handles dataset uploads for the model runners
type ModelHandler struct {
	service        *mlmodel.Service
	maxUploadBytes int64
}

// NewModelHandler creates a new model handler
func NewModelHandler(service *mlmodel.Service, maxUploadBytes int64) *ModelHandler {
	return &ModelHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

type upload struct {
	filename string
	data     []byte
}

// readUpload parses the multipart form and reads the dataset from its file field
func (h *ModelHandler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("upload exceeds the %d byte limit", tooLarge.Limit)
		}
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return &upload{filename: header.Filename, data: data}, nil
}

// HandleTrain returns the handler for POST /<family>
func (h *ModelHandler) HandleTrain(family models.ModelFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, err := h.readUpload(w, r)
		if err != nil {
			writeValidationResponse(w, err.Error())
			return
		}
		target := r.FormValue("target_column")
		if strings.TrimSpace(target) == "" {
			writeValidationResponse(w, "target_column is required")
			return
		}

		result, err := h.service.Train(r.Context(), &mlmodel.TrainRequest{
			Family:       family,
			Filename:     up.filename,
			Data:         up.data,
			TargetColumn: target,
			Metrics:      metrics.ParseRequest(r.FormValue("metrics")),
		})
		if err != nil {
			writeErrorResponse(w, r, err)
			return
		}

		writeJSONResponse(w, http.StatusOK, envelope(family, result))
	}
}

// HandleNeuralNetwork handles POST /deep-neural-network. The target column,
// network configuration and metrics arrive as one JSON document in the
// request_data field.
func (h *ModelHandler) HandleNeuralNetwork(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		writeValidationResponse(w, err.Error())
		return
	}
	raw := r.FormValue("request_data")
	if raw == "" {
		writeValidationResponse(w, "request_data is required")
		return
	}

	var req models.NetworkRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		writeErrorResponse(w, r, models.MalformedJSONError("request_data", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeErrorResponse(w, r, &models.Error{Code: models.EInvalid, Msg: err.Error(), Err: err})
		return
	}

	requested := metrics.ParseRequest(string(req.Metrics))
	if requested == nil {
		requested = metrics.ParseRequest(r.FormValue("metrics"))
	}

	result, err := h.service.Train(r.Context(), &mlmodel.TrainRequest{
		Family:       models.ModelFamilyNeuralNetwork,
		Filename:     up.filename,
		Data:         up.data,
		TargetColumn: req.TargetColumn,
		Metrics:      requested,
		Network:      req.ModelConfig,
	})
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// HandleRecommend handles POST /recommend-model
func (h *ModelHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		writeValidationResponse(w, err.Error())
		return
	}
	target := r.FormValue("target_column")
	if strings.TrimSpace(target) == "" {
		writeValidationResponse(w, "target_column is required")
		return
	}

	recommendation, err := h.service.Recommend(r.Context(), up.filename, up.data, target)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, recommendation)
}

// HandleFamilies handles GET /model-families
func (h *ModelHandler) HandleFamilies(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{"families": h.service.Families()})
}

// envelope shapes a model result the way the model endpoints report it
func envelope(family models.ModelFamily, result *models.ModelResult) map[string]any {
	body := map[string]any{
		"model":               result.ModelType,
		"model_family":        family,
		"message":             "Model executed successfully!",
		"metrics":             result.Metrics,
		"predictions_preview": result.PredictionsPreview,
	}
	if result.ProblemType != "" {
		body["problem_type"] = result.ProblemType
	}
	if len(result.Coefficients) > 0 {
		body["coefficients"] = result.Coefficients
	}
	if result.Intercept != nil {
		body["intercept"] = *result.Intercept
	}
	if len(result.Parameters) > 0 {
		body["parameters"] = result.Parameters
	}
	if len(result.FeatureImportances) > 0 {
		body["feature_importances"] = result.FeatureImportances
	}
	return body
}
