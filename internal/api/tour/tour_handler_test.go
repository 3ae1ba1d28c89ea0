package tour

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ceylonroots/tour-admin/internal/duration"
	"github.com/ceylonroots/tour-admin/internal/types"
)

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) SynchronizeTour(ctx context.Context, buffer *types.TourEditBuffer, target *EditTarget) (uuid.UUID, error) {
	args := m.Called(ctx, buffer, target)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockSyncService) OpenEditSession(ctx context.Context, id uuid.UUID) (*types.TourAggregate, *types.ChildSnapshot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*types.TourAggregate), args.Get(1).(*types.ChildSnapshot), args.Error(2)
}

func (m *MockSyncService) GetTour(ctx context.Context, id uuid.UUID) (*types.TourAggregate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.TourAggregate), args.Error(1)
}

func (m *MockSyncService) ListTours(ctx context.Context, hotOnly bool) ([]types.Tour, error) {
	args := m.Called(ctx, hotOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Tour), args.Error(1)
}

func (m *MockSyncService) DeleteTour(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func multipartSaveRequest(t *testing.T, method, url string, payload tourPayload, files map[string][]byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("tour", string(raw)))

	for name, data := range files {
		part, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validPayload() tourPayload {
	return tourPayload{
		Name:        "Hill Country Explorer",
		Location:    "Kandy",
		Price:       120,
		Duration:    duration.Value{Kind: duration.Days, Days: 3},
		Tagline:     "Misty highlands",
		Description: "Tea estates and waterfalls.",
		Inclusions:  []string{"Guide"},
		Itinerary:   []types.DayGroup{{DayLabel: "Day 1", Activities: []string{"Arrive"}}},
		ImageURLs:   []string{"https://cdn.example.com/kandy.jpg"},
	}
}

func TestCreateTourHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockService := new(MockSyncService)
		handler := NewTourHandler(mockService, "", testLogger())
		tourID := uuid.New()

		mockService.On("SynchronizeTour", mock.Anything, mock.MatchedBy(func(buf *types.TourEditBuffer) bool {
			return buf.Name == "Hill Country Explorer" &&
				len(buf.Media) == 1 &&
				buf.Media[0].Kind == types.MediaSourceURL
		}), (*EditTarget)(nil)).Return(tourID, nil).Once()

		req := multipartSaveRequest(t, http.MethodPost, "/api/v1/tours", validPayload(), nil)
		rec := httptest.NewRecorder()
		handler.CreateTour(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tourID.String(), resp["id"])
		mockService.AssertExpectations(t)
	})

	t.Run("field errors map to 422 with the itemized list", func(t *testing.T) {
		mockService := new(MockSyncService)
		handler := NewTourHandler(mockService, "", testLogger())

		mockService.On("SynchronizeTour", mock.Anything, mock.Anything, (*EditTarget)(nil)).
			Return(uuid.Nil, &types.FieldErrors{Fields: []string{"Name", "Duration"}}).Once()

		req := multipartSaveRequest(t, http.MethodPost, "/api/v1/tours", tourPayload{ImageURLs: []string{"https://x.test/a.jpg"}}, nil)
		rec := httptest.NewRecorder()
		handler.CreateTour(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp struct {
			Fields []string `json:"fields"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Name", "Duration"}, resp.Fields)
	})

	t.Run("bad media is rejected before the service is called", func(t *testing.T) {
		mockService := new(MockSyncService)
		handler := NewTourHandler(mockService, "", testLogger())

		payload := validPayload()
		payload.ImageURLs = []string{"not a url"}
		req := multipartSaveRequest(t, http.MethodPost, "/api/v1/tours", payload, nil)
		rec := httptest.NewRecorder()
		handler.CreateTour(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "SynchronizeTour", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("remote failure maps to 502 naming the operation", func(t *testing.T) {
		mockService := new(MockSyncService)
		handler := NewTourHandler(mockService, "", testLogger())

		mockService.On("SynchronizeTour", mock.Anything, mock.Anything, (*EditTarget)(nil)).
			Return(uuid.Nil, &types.RemoteError{Op: "createInclusion", Err: assert.AnError}).Once()

		req := multipartSaveRequest(t, http.MethodPost, "/api/v1/tours", validPayload(), nil)
		rec := httptest.NewRecorder()
		handler.CreateTour(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "createInclusion")
	})
}

func TestUpdateTourHandler_PassesSnapshot(t *testing.T) {
	mockService := new(MockSyncService)
	handler := NewTourHandler(mockService, "", testLogger())
	tourID := uuid.New()
	inclusionID := uuid.New()

	payload := validPayload()
	payload.Snapshot = &types.ChildSnapshot{Inclusions: []uuid.UUID{inclusionID}}

	mockService.On("SynchronizeTour", mock.Anything, mock.Anything, mock.MatchedBy(func(target *EditTarget) bool {
		return target != nil && target.TourID == tourID &&
			len(target.Snapshot.Inclusions) == 1 &&
			target.Snapshot.Inclusions[0] == inclusionID
	})).Return(tourID, nil).Once()

	r := chi.NewRouter()
	r.Put("/api/v1/tours/{tourID}", handler.UpdateTour)

	req := multipartSaveRequest(t, http.MethodPut, "/api/v1/tours/"+tourID.String(), payload, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

func TestOpenEditSessionHandler(t *testing.T) {
	openEditSession := func(t *testing.T, storedDuration string) editSessionResponse {
		t.Helper()
		mockService := new(MockSyncService)
		handler := NewTourHandler(mockService, "", testLogger())
		tourID := uuid.New()
		inclusionID := uuid.New()

		agg := &types.TourAggregate{
			Tour:       types.Tour{ID: tourID, Name: "Coastal Loop", Duration: storedDuration},
			Inclusions: []types.ChildItem{{ID: inclusionID, Description: "Guide"}},
		}
		snapshot := &types.ChildSnapshot{Inclusions: []uuid.UUID{inclusionID}}
		mockService.On("OpenEditSession", mock.Anything, tourID).Return(agg, snapshot, nil).Once()

		r := chi.NewRouter()
		r.Get("/api/v1/tours/{tourID}/edit", handler.OpenEditSession)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tours/"+tourID.String()+"/edit", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp editSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		mockService.AssertExpectations(t)
		return resp
	}

	t.Run("decodes the stored duration for the form", func(t *testing.T) {
		resp := openEditSession(t, "2-4 days")
		assert.Equal(t, duration.Value{Kind: duration.DayRange, RangeStart: 2, RangeEnd: 4}, resp.DurationValue)
		require.NotNil(t, resp.Snapshot)
		assert.Len(t, resp.Snapshot.Inclusions, 1)
	})

	t.Run("unparseable stored duration opens the session with an unset value", func(t *testing.T) {
		resp := openEditSession(t, "about a week")
		assert.Equal(t, duration.Unset, resp.DurationValue.Kind)
	})
}

func TestGetTourHandler_NotFound(t *testing.T) {
	mockService := new(MockSyncService)
	handler := NewTourHandler(mockService, "", testLogger())
	tourID := uuid.New()

	mockService.On("GetTour", mock.Anything, tourID).Return(nil, types.ErrNotFound).Once()

	r := chi.NewRouter()
	r.Get("/api/v1/tours/{tourID}", handler.GetTour)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours/"+tourID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
