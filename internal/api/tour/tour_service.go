package tour

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ceylonroots/tour-admin/app/observability/metrics"
	"github.com/ceylonroots/tour-admin/internal/duration"
	"github.com/ceylonroots/tour-admin/internal/media"
	"github.com/ceylonroots/tour-admin/internal/types"
)

const (
	maxNameLen     = 80
	maxLocationLen = 15
	maxTaglineLen  = 80
	maxRating      = 4.9
)

var digitsRe = regexp.MustCompile(`\d+`)

// EditTarget identifies an existing tour being edited: its id and the child
// id snapshot captured when the edit session was opened. A nil target means
// the save is a create.
type EditTarget struct {
	TourID   uuid.UUID
	Snapshot types.ChildSnapshot
}

var _ SyncService = (*SyncServiceImpl)(nil)

type SyncService interface {
	// SynchronizeTour runs one end-to-end save: root-field validation, root
	// create or update, then full-replace reconciliation of the four child
	// collections in buffer order. On failure the store may be left
	// partially updated; completed calls are never undone.
	SynchronizeTour(ctx context.Context, buffer *types.TourEditBuffer, target *EditTarget) (uuid.UUID, error)

	// OpenEditSession fetches the aggregate fresh from the store together
	// with the child id snapshot the client must echo back on save.
	OpenEditSession(ctx context.Context, id uuid.UUID) (*types.TourAggregate, *types.ChildSnapshot, error)

	GetTour(ctx context.Context, id uuid.UUID) (*types.TourAggregate, error)
	ListTours(ctx context.Context, hotOnly bool) ([]types.Tour, error)
	DeleteTour(ctx context.Context, id uuid.UUID) error
}

type SyncServiceImpl struct {
	logger *slog.Logger
	remote RemoteStore
	cache  *cache.Cache
	group  singleflight.Group
}

func NewSyncService(remote RemoteStore, logger *slog.Logger) *SyncServiceImpl {
	return &SyncServiceImpl{
		logger: logger,
		remote: remote,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *SyncServiceImpl) SynchronizeTour(ctx context.Context, buffer *types.TourEditBuffer, target *EditTarget) (uuid.UUID, error) {
	start := time.Now()
	ctx, span := otel.Tracer("TourSync").Start(ctx, "SynchronizeTour", trace.WithAttributes(
		attribute.Bool("sync.is_edit", target != nil),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SynchronizeTour"), slog.Bool("edit", target != nil))

	fields, missing := rootFieldsFromBuffer(buffer)
	if len(missing) > 0 {
		l.WarnContext(ctx, "Save rejected, mandatory fields missing", slog.Any("fields", missing))
		span.SetStatus(codes.Error, "Mandatory fields missing")
		return uuid.Nil, &types.FieldErrors{Fields: missing}
	}

	var tourID uuid.UUID
	var snapshot types.ChildSnapshot
	if target == nil {
		id, err := s.remote.CreateTourRoot(ctx, fields)
		if err != nil {
			s.recordRemoteFailure(ctx, span, err)
			return uuid.Nil, &types.RemoteError{Op: "createTourRoot", Err: err}
		}
		tourID = id
	} else {
		tourID = target.TourID
		snapshot = target.Snapshot
		if err := s.remote.UpdateTourRoot(ctx, tourID, fields); err != nil {
			s.recordRemoteFailure(ctx, span, err)
			return uuid.Nil, &types.RemoteError{Op: "updateTourRoot", Err: err}
		}
	}
	span.SetAttributes(attribute.String("tour.id", tourID.String()))

	// Root happens-before children; within each collection deletes precede
	// creates; collections run one after another with no cross-collection
	// ordering dependency.
	collections := []childCollection{
		s.imageCollection(tourID, snapshot.Images, buffer.Media),
		s.descriptionCollection("inclusions", tourID, snapshot.Inclusions, buffer.Inclusions,
			"deleteInclusion", "createInclusion", s.remote.DeleteInclusion, s.remote.CreateInclusion),
		s.descriptionCollection("exclusions", tourID, snapshot.Exclusions, buffer.Exclusions,
			"deleteExclusion", "createExclusion", s.remote.DeleteExclusion, s.remote.CreateExclusion),
		s.itineraryCollection(tourID, snapshot.Itinerary, buffer.Itinerary),
	}
	for _, c := range collections {
		if err := applyFullReplace(ctx, l, c); err != nil {
			s.recordRemoteFailure(ctx, span, err)
			s.invalidate(tourID)
			return uuid.Nil, err
		}
		if m := metrics.Get(); m != nil {
			m.ChildRecordsRecreated.Add(ctx, int64(len(c.creates)))
		}
	}

	s.invalidate(tourID)
	if m := metrics.Get(); m != nil {
		m.TourSavesTotal.Add(ctx, 1)
		m.TourSaveDurationSecs.Record(ctx, time.Since(start).Seconds())
	}

	l.InfoContext(ctx, "Tour synchronized", slog.String("tourID", tourID.String()))
	span.SetStatus(codes.Ok, "Tour synchronized")
	return tourID, nil
}

func (s *SyncServiceImpl) imageCollection(tourID uuid.UUID, snapshot []uuid.UUID, sources []types.MediaSource) childCollection {
	creates := make([]func(ctx context.Context) (uuid.UUID, error), 0, len(sources))
	for _, src := range sources {
		src := src
		if src.Kind == types.MediaSourceFile {
			creates = append(creates, func(ctx context.Context) (uuid.UUID, error) {
				return s.remote.CreateImageFromFile(ctx, tourID, src)
			})
		} else {
			creates = append(creates, func(ctx context.Context) (uuid.UUID, error) {
				return s.remote.CreateImageFromURL(ctx, tourID, src.URL)
			})
		}
	}
	return childCollection{
		name:     "images",
		deleteOp: "deleteImage",
		createOp: "createImage",
		snapshot: snapshot,
		deleteFn: func(ctx context.Context, id uuid.UUID) error { return s.remote.DeleteImage(ctx, tourID, id) },
		creates:  creates,
	}
}

func (s *SyncServiceImpl) descriptionCollection(
	name string,
	tourID uuid.UUID,
	snapshot []uuid.UUID,
	items []string,
	deleteOp, createOp string,
	deleteFn func(ctx context.Context, tourID, id uuid.UUID) error,
	createFn func(ctx context.Context, tourID uuid.UUID, description string) (uuid.UUID, error),
) childCollection {
	creates := make([]func(ctx context.Context) (uuid.UUID, error), 0, len(items))
	for _, item := range items {
		item := item
		creates = append(creates, func(ctx context.Context) (uuid.UUID, error) {
			return createFn(ctx, tourID, item)
		})
	}
	return childCollection{
		name:     name,
		deleteOp: deleteOp,
		createOp: createOp,
		snapshot: snapshot,
		deleteFn: func(ctx context.Context, id uuid.UUID) error { return deleteFn(ctx, tourID, id) },
		creates:  creates,
	}
}

func (s *SyncServiceImpl) itineraryCollection(tourID uuid.UUID, snapshot []uuid.UUID, groups []types.DayGroup) childCollection {
	var creates []func(ctx context.Context) (uuid.UUID, error)
	for gi, group := range groups {
		day := dayNumberFor(group.DayLabel, gi)
		for _, activity := range group.Activities {
			activity := activity
			creates = append(creates, func(ctx context.Context) (uuid.UUID, error) {
				return s.remote.CreateItineraryEntry(ctx, tourID, day, activity)
			})
		}
	}
	return childCollection{
		name:     "itinerary",
		deleteOp: "deleteItineraryEntry",
		createOp: "createItineraryEntry",
		snapshot: snapshot,
		deleteFn: func(ctx context.Context, id uuid.UUID) error { return s.remote.DeleteItineraryEntry(ctx, tourID, id) },
		creates:  creates,
	}
}

// dayNumberFor derives the stored day number from a free-text day label:
// the first run of digits wins; a label without digits falls back to the
// group's 1-based position.
func dayNumberFor(label string, position int) int {
	if digits := digitsRe.FindString(label); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil && n > 0 {
			return n
		}
	}
	return position + 1
}

// rootFieldsFromBuffer validates the mandatory root fields and static
// constraints before any store call is made. Rating is clamped to [0, 4.9]
// and a negative review count to 0 rather than rejected.
func rootFieldsFromBuffer(buffer *types.TourEditBuffer) (types.TourFields, []string) {
	var missing []string

	name := strings.TrimSpace(buffer.Name)
	if name == "" || len([]rune(name)) > maxNameLen {
		missing = append(missing, "Name")
	}
	location := strings.TrimSpace(buffer.Location)
	if location == "" || len([]rune(location)) > maxLocationLen {
		missing = append(missing, "Location")
	}
	if buffer.Price <= 0 {
		missing = append(missing, "Price")
	}
	durationStr := duration.Encode(buffer.Duration)
	if durationStr == "" {
		missing = append(missing, "Duration")
	}
	tagline := strings.TrimSpace(buffer.Tagline)
	if tagline == "" || len([]rune(tagline)) > maxTaglineLen {
		missing = append(missing, "Tagline")
	}
	if strings.TrimSpace(buffer.Description) == "" {
		missing = append(missing, "Description")
	}
	if len(buffer.Media) < 1 || len(buffer.Media) > media.MaxImages {
		missing = append(missing, "Images")
	}

	rating := buffer.Rating
	if rating < 0 {
		rating = 0
	}
	if rating > maxRating {
		rating = maxRating
	}
	reviews := buffer.ReviewsCount
	if reviews < 0 {
		reviews = 0
	}

	return types.TourFields{
		Name:         name,
		Location:     location,
		Price:        buffer.Price,
		Duration:     durationStr,
		Rating:       rating,
		ReviewsCount: reviews,
		IsHotDeal:    buffer.IsHotDeal,
		Tagline:      tagline,
		Description:  buffer.Description,
	}, missing
}

func (s *SyncServiceImpl) OpenEditSession(ctx context.Context, id uuid.UUID) (*types.TourAggregate, *types.ChildSnapshot, error) {
	ctx, span := otel.Tracer("TourSync").Start(ctx, "OpenEditSession", trace.WithAttributes(
		attribute.String("tour.id", id.String()),
	))
	defer span.End()

	// Always fetched fresh: the snapshot must reflect the store at the
	// moment editing begins.
	agg, err := s.remote.FetchTourAggregate(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch aggregate")
		return nil, nil, fmt.Errorf("error opening edit session: %w", err)
	}

	snapshot := snapshotFromAggregate(agg)
	span.SetStatus(codes.Ok, "Edit session opened")
	return agg, snapshot, nil
}

func snapshotFromAggregate(agg *types.TourAggregate) *types.ChildSnapshot {
	snap := &types.ChildSnapshot{}
	for _, item := range agg.Inclusions {
		snap.Inclusions = append(snap.Inclusions, item.ID)
	}
	for _, item := range agg.Exclusions {
		snap.Exclusions = append(snap.Exclusions, item.ID)
	}
	for _, item := range agg.Itinerary {
		snap.Itinerary = append(snap.Itinerary, item.ID)
	}
	for _, img := range agg.Images {
		snap.Images = append(snap.Images, img.ID)
	}
	return snap
}

func (s *SyncServiceImpl) GetTour(ctx context.Context, id uuid.UUID) (*types.TourAggregate, error) {
	key := "tour:" + id.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*types.TourAggregate), nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		agg, err := s.remote.FetchTourAggregate(ctx, id)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, agg, cache.DefaultExpiration)
		return agg, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching tour: %w", err)
	}
	return v.(*types.TourAggregate), nil
}

func (s *SyncServiceImpl) ListTours(ctx context.Context, hotOnly bool) ([]types.Tour, error) {
	key := "tours:all"
	if hotOnly {
		key = "tours:hot"
	}
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]types.Tour), nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		tours, err := s.remote.ListTours(ctx, hotOnly)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, tours, cache.DefaultExpiration)
		return tours, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error listing tours: %w", err)
	}
	return v.([]types.Tour), nil
}

func (s *SyncServiceImpl) DeleteTour(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("TourSync").Start(ctx, "DeleteTour", trace.WithAttributes(
		attribute.String("tour.id", id.String()),
	))
	defer span.End()

	if err := s.remote.DeleteTourRoot(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete tour")
		return fmt.Errorf("error deleting tour: %w", err)
	}

	s.invalidate(id)
	span.SetStatus(codes.Ok, "Tour deleted")
	return nil
}

func (s *SyncServiceImpl) invalidate(id uuid.UUID) {
	s.cache.Delete("tour:" + id.String())
	s.cache.Delete("tours:all")
	s.cache.Delete("tours:hot")
}

func (s *SyncServiceImpl) recordRemoteFailure(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "Store operation failed")
	if m := metrics.Get(); m != nil {
		m.RemoteCallErrorsTotal.Add(ctx, 1)
	}
}
