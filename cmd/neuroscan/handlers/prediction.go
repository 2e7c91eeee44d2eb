package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/middleware"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/service"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/storage"
	"github.com/cortexlab/neuroscan/common/bootstrap"
	"github.com/cortexlab/neuroscan/common/clients"
	"github.com/cortexlab/neuroscan/common/validation"
)

// PredictionHandler handles scan uploads and retrieval
type PredictionHandler struct {
	components  *bootstrap.Components
	predictions *service.PredictionService
	validator   *validation.UploadValidator
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(components *bootstrap.Components, predictions *service.PredictionService) *PredictionHandler {
	return &PredictionHandler{
		components:  components,
		predictions: predictions,
		validator:   validation.NewUploadValidator(components.Config.Storage.MaxUploadSize),
	}
}

// Predict accepts an MRI scan upload, classifies it, and persists the result
// POST /api/v1/predict
func (h *PredictionHandler) Predict(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	if h.components.Telemetry != nil {
		defer h.components.Telemetry.RecordDuration("predict", time.Now())
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}

	maxSize := h.components.Config.Storage.MaxUploadSize
	if fileHeader.Size > maxSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image exceeds upload size limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.components.Logger.Error("failed to open upload", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read upload")
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		h.components.Logger.Error("failed to read upload", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read upload")
	}

	if err := h.validator.Validate(raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := clients.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
	outcome, err := h.predictions.Predict(ctx, userID, fileHeader.Filename, raw)
	if err != nil {
		if errors.Is(err, storage.ErrEmptyImage) {
			return echo.NewHTTPError(http.StatusBadRequest, "image file is empty")
		}
		h.components.Logger.Error("prediction failed", "error", err, "user_id", userID)
		return echo.NewHTTPError(http.StatusBadGateway, "prediction failed")
	}

	return c.JSON(http.StatusCreated, outcome)
}

// History lists the user's past predictions, newest first
// GET /api/v1/predictions?limit=50
func (h *PredictionHandler) History(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	entries, err := h.predictions.History(c.Request().Context(), userID, limit)
	if err != nil {
		h.components.Logger.Error("failed to list history", "error", err, "user_id", userID)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list predictions")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"predictions": entries,
		"count":       len(entries),
	})
}

// GetImage serves the stored scan image for a prediction the user owns
// GET /api/v1/predictions/:id/image
func (h *PredictionHandler) GetImage(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	predictionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || predictionID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prediction id")
	}

	image, err := h.predictions.FetchImage(c.Request().Context(), predictionID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no stored image for this prediction")
		}
		h.components.Logger.Error("failed to fetch image", "error", err,
			"user_id", userID, "prediction_id", predictionID)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve image")
	}

	return c.Blob(http.StatusOK, "image/jpeg", image)
}
