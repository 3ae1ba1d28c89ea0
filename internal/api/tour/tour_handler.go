package tour

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceylonroots/tour-admin/app/observability/metrics"
	"github.com/ceylonroots/tour-admin/internal/api"
	"github.com/ceylonroots/tour-admin/internal/duration"
	"github.com/ceylonroots/tour-admin/internal/media"
	"github.com/ceylonroots/tour-admin/internal/types"
)

const maxMultipartMemory = 32 << 20

// tourPayload is the JSON "tour" part of a multipart save request. Uploaded
// files ride alongside as "images" parts; file entries precede URL entries
// in the resulting media order.
type tourPayload struct {
	Name         string               `json:"name"`
	Location     string               `json:"location"`
	Price        float64              `json:"price"`
	Duration     duration.Value       `json:"duration"`
	Rating       float64              `json:"rating"`
	ReviewsCount int                  `json:"reviewsCount"`
	IsHotDeal    bool                 `json:"isHotDeal"`
	Tagline      string               `json:"tagline"`
	Description  string               `json:"description"`
	Inclusions   []string             `json:"inclusions"`
	Exclusions   []string             `json:"exclusions"`
	Itinerary    []types.DayGroup     `json:"itinerary"`
	ImageURLs    []string             `json:"imageUrls"`
	Snapshot     *types.ChildSnapshot `json:"snapshot,omitempty"`
}

// editSessionResponse carries everything the admin UI needs to populate the
// edit form: the aggregate, the duration decoded into its editable value, and
// the child-id snapshot to echo back on save.
type editSessionResponse struct {
	Aggregate     *types.TourAggregate `json:"aggregate"`
	DurationValue duration.Value       `json:"durationValue"`
	Snapshot      *types.ChildSnapshot `json:"snapshot"`
}

type TourHandler struct {
	service    SyncService
	previewDir string
	logger     *slog.Logger
}

func NewTourHandler(service SyncService, previewDir string, logger *slog.Logger) *TourHandler {
	return &TourHandler{
		service:    service,
		previewDir: previewDir,
		logger:     logger,
	}
}

// ListTours godoc
// @Summary      List Tours
// @Description  Returns all tours, optionally only hot deals.
// @Tags         Tours
// @Produce      json
// @Param        hot query bool false "Only hot deals"
// @Success      200 {array} types.Tour
// @Failure      500 {object} map[string]interface{}
// @Router       /tours [get]
func (h *TourHandler) ListTours(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TourHandler").Start(r.Context(), "ListTours", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/tours"),
	))
	defer span.End()

	hotOnly := r.URL.Query().Get("hot") == "true"
	tours, err := h.service.ListTours(ctx, hotOnly)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list tours", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list tours")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list tours")
		return
	}
	if tours == nil {
		tours = []types.Tour{}
	}

	span.SetStatus(codes.Ok, "Tours listed")
	api.WriteJSONResponse(w, r, http.StatusOK, tours)
}

// GetTour godoc
// @Summary      Get Tour
// @Description  Returns one tour aggregate: root record plus inclusions, exclusions, itinerary and images.
// @Tags         Tours
// @Produce      json
// @Param        tourID path string true "Tour ID"
// @Success      200 {object} types.TourAggregate
// @Failure      404 {object} map[string]interface{}
// @Router       /tours/{tourID} [get]
func (h *TourHandler) GetTour(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TourHandler").Start(r.Context(), "GetTour")
	defer span.End()

	id, ok := h.tourIDParam(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Invalid tour ID")
		return
	}

	agg, err := h.service.GetTour(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Error, "Tour not found")
			api.ErrorResponse(w, r, http.StatusNotFound, "Tour not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to fetch tour", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch tour")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch tour")
		return
	}

	span.SetStatus(codes.Ok, "Tour fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, agg)
}

// OpenEditSession godoc
// @Summary      Open Edit Session
// @Description  Fetches a tour aggregate fresh from the store together with the child-id snapshot the client must echo back on save.
// @Tags         Tours
// @Produce      json
// @Param        tourID path string true "Tour ID"
// @Success      200 {object} editSessionResponse
// @Failure      404 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /tours/{tourID}/edit [get]
func (h *TourHandler) OpenEditSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TourHandler").Start(r.Context(), "OpenEditSession")
	defer span.End()

	id, ok := h.tourIDParam(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Invalid tour ID")
		return
	}

	agg, snapshot, err := h.service.OpenEditSession(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Tour not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to open edit session", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to open edit session")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to open edit session")
		return
	}

	// Lenient decode: an unparseable stored duration opens the form with an
	// unset value instead of blocking the session.
	durationValue := duration.Decode(agg.Tour.Duration)
	if agg.Tour.Duration != "" && durationValue.Kind == duration.Unset {
		h.logger.DebugContext(ctx, "Stored duration did not match the grammar",
			slog.String("tourID", id.String()), slog.String("duration", agg.Tour.Duration))
	}

	span.SetStatus(codes.Ok, "Edit session opened")
	api.WriteJSONResponse(w, r, http.StatusOK, editSessionResponse{
		Aggregate:     agg,
		DurationValue: durationValue,
		Snapshot:      snapshot,
	})
}

// CreateTour godoc
// @Summary      Create Tour
// @Description  Creates a tour and all its child records from a multipart save request.
// @Tags         Tours
// @Accept       multipart/form-data
// @Produce      json
// @Param        tour formData string true "Tour JSON payload"
// @Param        images formData file false "Uploaded images"
// @Success      201 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      422 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /tours [post]
func (h *TourHandler) CreateTour(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TourHandler").Start(r.Context(), "CreateTour")
	defer span.End()

	buffer, _, pipeline, err := h.readSaveRequest(w, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid save request")
		return
	}
	defer pipeline.Release()

	id, err := h.service.SynchronizeTour(ctx, buffer, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Save failed")
		h.writeSaveError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Tour created")
	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{"success": true, "id": id})
}

// UpdateTour saves an edited tour: the root record is updated in place and
// every child collection is deleted per the echoed snapshot and recreated
// from the request.
func (h *TourHandler) UpdateTour(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TourHandler").Start(r.Context(), "UpdateTour")
	defer span.End()

	id, ok := h.tourIDParam(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Invalid tour ID")
		return
	}

	buffer, snapshot, pipeline, err := h.readSaveRequest(w, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid save request")
		return
	}
	defer pipeline.Release()

	target := &EditTarget{TourID: id}
	if snapshot != nil {
		target.Snapshot = *snapshot
	}

	if _, err := h.service.SynchronizeTour(ctx, buffer, target); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Save failed")
		h.writeSaveError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Tour updated")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"success": true, "id": id})
}

func (h *TourHandler) DeleteTour(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TourHandler").Start(r.Context(), "DeleteTour")
	defer span.End()

	id, ok := h.tourIDParam(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Invalid tour ID")
		return
	}

	if err := h.service.DeleteTour(ctx, id); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Tour not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to delete tour", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete tour")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete tour")
		return
	}

	span.SetStatus(codes.Ok, "Tour deleted")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// readSaveRequest parses a multipart save request into an edit buffer, the
// optional echoed snapshot, and the media pipeline owning the preview
// resources. On error a response has already been written.
func (h *TourHandler) readSaveRequest(w http.ResponseWriter, r *http.Request) (*types.TourEditBuffer, *types.ChildSnapshot, *media.Pipeline, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Could not parse multipart form")
		return nil, nil, nil, err
	}

	var payload tourPayload
	if err := json.Unmarshal([]byte(r.FormValue("tour")), &payload); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid tour payload")
		return nil, nil, nil, err
	}

	pipeline := media.NewPipeline(h.previewDir, h.logger)

	var fileBatch []types.MediaSource
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["images"] {
			src, err := fileSourceFromHeader(fh)
			if err != nil {
				api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Could not read uploaded file %q", fh.Filename))
				return nil, nil, nil, err
			}
			fileBatch = append(fileBatch, src)
		}
	}
	if err := pipeline.Add(fileBatch); err != nil {
		h.writeIntakeError(w, r, err)
		return nil, nil, nil, err
	}

	var urlBatch []types.MediaSource
	for _, u := range payload.ImageURLs {
		urlBatch = append(urlBatch, types.MediaSource{Kind: types.MediaSourceURL, URL: u})
	}
	if err := pipeline.Add(urlBatch); err != nil {
		pipeline.Release()
		h.writeIntakeError(w, r, err)
		return nil, nil, nil, err
	}

	buffer := &types.TourEditBuffer{
		Name:         payload.Name,
		Location:     payload.Location,
		Price:        payload.Price,
		Duration:     payload.Duration,
		Rating:       payload.Rating,
		ReviewsCount: payload.ReviewsCount,
		IsHotDeal:    payload.IsHotDeal,
		Tagline:      payload.Tagline,
		Description:  payload.Description,
		Inclusions:   payload.Inclusions,
		Exclusions:   payload.Exclusions,
		Itinerary:    payload.Itinerary,
		Media:        pipeline.Sources(),
	}
	return buffer, payload.Snapshot, pipeline, nil
}

func fileSourceFromHeader(fh *multipart.FileHeader) (types.MediaSource, error) {
	f, err := fh.Open()
	if err != nil {
		return types.MediaSource{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, media.MaxFileBytes+1))
	if err != nil {
		return types.MediaSource{}, err
	}

	return types.MediaSource{
		Kind:     types.MediaSourceFile,
		FileName: fh.Filename,
		MIME:     fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Data:     data,
	}, nil
}

func (h *TourHandler) writeIntakeError(w http.ResponseWriter, r *http.Request, err error) {
	if m := metrics.Get(); m != nil {
		m.MediaRejectionsTotal.Add(r.Context(), 1)
	}
	var mediaErr *types.MediaError
	if errors.As(err, &mediaErr) {
		api.ErrorResponse(w, r, http.StatusBadRequest, mediaErr.Message)
		return
	}
	api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid media")
}

func (h *TourHandler) writeSaveError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs *types.FieldErrors
	var mediaErr *types.MediaError
	var remoteErr *types.RemoteError
	switch {
	case errors.As(err, &fieldErrs):
		api.FieldErrorResponse(w, r, fieldErrs.Fields)
	case errors.As(err, &mediaErr):
		api.ErrorResponse(w, r, http.StatusBadRequest, mediaErr.Message)
	case errors.As(err, &remoteErr):
		api.ErrorResponse(w, r, http.StatusBadGateway, fmt.Sprintf("Save incomplete: store operation %s failed", remoteErr.Op))
	default:
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to save tour")
	}
}

func (h *TourHandler) tourIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "tourID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid tour ID format")
		return uuid.Nil, false
	}
	return id, true
}
