package tour

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceylonroots/tour-admin/internal/types"
)

var _ RemoteStore = (*PostgresTourRepo)(nil)

// PGXPool is the subset of pgxpool.Pool the repository uses. pgxmock
// satisfies it in tests.
type PGXPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresTourRepo stores the tour aggregate as five tables. Uploaded image
// payloads are written to uploadDir and served under publicBaseURL.
type PostgresTourRepo struct {
	logger        *slog.Logger
	pgpool        PGXPool
	uploadDir     string
	publicBaseURL string
}

func NewPostgresTourRepo(pgpool PGXPool, uploadDir, publicBaseURL string, logger *slog.Logger) *PostgresTourRepo {
	return &PostgresTourRepo{
		logger:        logger,
		pgpool:        pgpool,
		uploadDir:     uploadDir,
		publicBaseURL: publicBaseURL,
	}
}

func (r *PostgresTourRepo) CreateTourRoot(ctx context.Context, fields types.TourFields) (uuid.UUID, error) {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "CreateTourRoot", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tours"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateTourRoot"), slog.String("name", fields.Name))

	query := `
		INSERT INTO tours (name, location, price, duration, rating, reviews_count, is_hot_deal, tagline, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, query,
		fields.Name, fields.Location, fields.Price, fields.Duration,
		fields.Rating, fields.ReviewsCount, fields.IsHotDeal,
		fields.Tagline, fields.Description,
	).Scan(&id)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert tour root", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return uuid.Nil, fmt.Errorf("database error creating tour: %w", err)
	}

	l.InfoContext(ctx, "Tour root created", slog.String("tourID", id.String()))
	span.SetStatus(codes.Ok, "Tour created")
	return id, nil
}

func (r *PostgresTourRepo) UpdateTourRoot(ctx context.Context, id uuid.UUID, fields types.TourFields) error {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "UpdateTourRoot", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tours"),
		attribute.String("db.tour.id", id.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateTourRoot"), slog.String("tourID", id.String()))

	query := `
		UPDATE tours
		SET name = $1, location = $2, price = $3, duration = $4, rating = $5,
		    reviews_count = $6, is_hot_deal = $7, tagline = $8, description = $9,
		    updated_at = NOW()
		WHERE id = $10
	`

	tag, err := r.pgpool.Exec(ctx, query,
		fields.Name, fields.Location, fields.Price, fields.Duration,
		fields.Rating, fields.ReviewsCount, fields.IsHotDeal,
		fields.Tagline, fields.Description, id,
	)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update tour root", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating tour: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Tour not found")
		return fmt.Errorf("tour %s: %w", id, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Tour updated")
	return nil
}

func (r *PostgresTourRepo) DeleteTourRoot(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "DeleteTourRoot", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tours"),
		attribute.String("db.tour.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM tours WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting tour: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Tour not found")
		return fmt.Errorf("tour %s: %w", id, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Tour deleted")
	return nil
}

func (r *PostgresTourRepo) FetchTourAggregate(ctx context.Context, id uuid.UUID) (*types.TourAggregate, error) {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "FetchTourAggregate", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.tour.id", id.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FetchTourAggregate"), slog.String("tourID", id.String()))

	var agg types.TourAggregate
	query := `
		SELECT id, name, location, price, duration, rating, reviews_count,
		       is_hot_deal, tagline, description, created_at, updated_at
		FROM tours
		WHERE id = $1
	`
	err := r.pgpool.QueryRow(ctx, query, id).Scan(
		&agg.Tour.ID, &agg.Tour.Name, &agg.Tour.Location, &agg.Tour.Price,
		&agg.Tour.Duration, &agg.Tour.Rating, &agg.Tour.ReviewsCount,
		&agg.Tour.IsHotDeal, &agg.Tour.Tagline, &agg.Tour.Description,
		&agg.Tour.CreatedAt, &agg.Tour.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Tour not found")
			return nil, fmt.Errorf("tour %s: %w", id, types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to query tour root", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching tour: %w", err)
	}

	if agg.Inclusions, err = r.fetchChildItems(ctx, "tour_inclusions", id); err != nil {
		return nil, err
	}
	if agg.Exclusions, err = r.fetchChildItems(ctx, "tour_exclusions", id); err != nil {
		return nil, err
	}
	if agg.Itinerary, err = r.fetchItinerary(ctx, id); err != nil {
		return nil, err
	}
	if agg.Images, err = r.fetchImages(ctx, id); err != nil {
		return nil, err
	}

	span.SetStatus(codes.Ok, "Aggregate fetched")
	return &agg, nil
}

func (r *PostgresTourRepo) fetchChildItems(ctx context.Context, table string, tourID uuid.UUID) ([]types.ChildItem, error) {
	query := fmt.Sprintf(`SELECT id, description FROM %s WHERE tour_id = $1 ORDER BY seq`, table)
	rows, err := r.pgpool.Query(ctx, query, tourID)
	if err != nil {
		return nil, fmt.Errorf("database error fetching %s: %w", table, err)
	}
	defer rows.Close()

	var items []types.ChildItem
	for rows.Next() {
		var item types.ChildItem
		if err := rows.Scan(&item.ID, &item.Description); err != nil {
			return nil, fmt.Errorf("database error scanning %s: %w", table, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostgresTourRepo) fetchItinerary(ctx context.Context, tourID uuid.UUID) ([]types.ItineraryItem, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT id, day_number, activity FROM tour_itinerary WHERE tour_id = $1 ORDER BY seq`, tourID)
	if err != nil {
		return nil, fmt.Errorf("database error fetching itinerary: %w", err)
	}
	defer rows.Close()

	var items []types.ItineraryItem
	for rows.Next() {
		var item types.ItineraryItem
		if err := rows.Scan(&item.ID, &item.DayNumber, &item.Activity); err != nil {
			return nil, fmt.Errorf("database error scanning itinerary: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostgresTourRepo) fetchImages(ctx context.Context, tourID uuid.UUID) ([]types.TourImage, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT id, url FROM tour_images WHERE tour_id = $1 ORDER BY seq`, tourID)
	if err != nil {
		return nil, fmt.Errorf("database error fetching images: %w", err)
	}
	defer rows.Close()

	var images []types.TourImage
	for rows.Next() {
		var img types.TourImage
		if err := rows.Scan(&img.ID, &img.URL); err != nil {
			return nil, fmt.Errorf("database error scanning images: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *PostgresTourRepo) ListTours(ctx context.Context, hotOnly bool) ([]types.Tour, error) {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "ListTours", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tours"),
		attribute.Bool("query.hot_only", hotOnly),
	))
	defer span.End()

	query := `
		SELECT id, name, location, price, duration, rating, reviews_count,
		       is_hot_deal, tagline, description, created_at, updated_at
		FROM tours
	`
	if hotOnly {
		query += ` WHERE is_hot_deal`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pgpool.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing tours: %w", err)
	}
	defer rows.Close()

	var tours []types.Tour
	for rows.Next() {
		var t types.Tour
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Location, &t.Price, &t.Duration, &t.Rating,
			&t.ReviewsCount, &t.IsHotDeal, &t.Tagline, &t.Description,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning tour: %w", err)
		}
		tours = append(tours, t)
	}

	span.SetStatus(codes.Ok, "Tours listed")
	return tours, rows.Err()
}

func (r *PostgresTourRepo) CreateInclusion(ctx context.Context, tourID uuid.UUID, description string) (uuid.UUID, error) {
	return r.createChildItem(ctx, "tour_inclusions", tourID, description)
}

func (r *PostgresTourRepo) DeleteInclusion(ctx context.Context, tourID, id uuid.UUID) error {
	return r.deleteChild(ctx, "tour_inclusions", tourID, id)
}

func (r *PostgresTourRepo) CreateExclusion(ctx context.Context, tourID uuid.UUID, description string) (uuid.UUID, error) {
	return r.createChildItem(ctx, "tour_exclusions", tourID, description)
}

func (r *PostgresTourRepo) DeleteExclusion(ctx context.Context, tourID, id uuid.UUID) error {
	return r.deleteChild(ctx, "tour_exclusions", tourID, id)
}

func (r *PostgresTourRepo) createChildItem(ctx context.Context, table string, tourID uuid.UUID, description string) (uuid.UUID, error) {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "CreateChildItem", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", table),
		attribute.String("db.tour.id", tourID.String()),
	))
	defer span.End()

	query := fmt.Sprintf(`INSERT INTO %s (tour_id, description) VALUES ($1, $2) RETURNING id`, table)
	var id uuid.UUID
	if err := r.pgpool.QueryRow(ctx, query, tourID, description).Scan(&id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return uuid.Nil, fmt.Errorf("database error inserting into %s: %w", table, err)
	}
	span.SetStatus(codes.Ok, "Child item created")
	return id, nil
}

func (r *PostgresTourRepo) deleteChild(ctx context.Context, table string, tourID, id uuid.UUID) error {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "DeleteChild", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", table),
		attribute.String("db.tour.id", tourID.String()),
	))
	defer span.End()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND tour_id = $2`, table)
	tag, err := r.pgpool.Exec(ctx, query, id, tourID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Child record not found")
		return fmt.Errorf("%s record %s: %w", table, id, types.ErrNotFound)
	}
	span.SetStatus(codes.Ok, "Child deleted")
	return nil
}

func (r *PostgresTourRepo) CreateItineraryEntry(ctx context.Context, tourID uuid.UUID, dayNumber int, activity string) (uuid.UUID, error) {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "CreateItineraryEntry", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tour_itinerary"),
		attribute.String("db.tour.id", tourID.String()),
		attribute.Int("tour.day_number", dayNumber),
	))
	defer span.End()

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO tour_itinerary (tour_id, day_number, activity) VALUES ($1, $2, $3) RETURNING id`,
		tourID, dayNumber, activity,
	).Scan(&id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return uuid.Nil, fmt.Errorf("database error inserting itinerary entry: %w", err)
	}
	span.SetStatus(codes.Ok, "Itinerary entry created")
	return id, nil
}

func (r *PostgresTourRepo) DeleteItineraryEntry(ctx context.Context, tourID, id uuid.UUID) error {
	return r.deleteChild(ctx, "tour_itinerary", tourID, id)
}

func (r *PostgresTourRepo) CreateImageFromFile(ctx context.Context, tourID uuid.UUID, file types.MediaSource) (uuid.UUID, error) {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "CreateImageFromFile", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tour_images"),
		attribute.String("db.tour.id", tourID.String()),
		attribute.Int64("file.size", file.Size),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateImageFromFile"), slog.String("tourID", tourID.String()))

	if err := os.MkdirAll(r.uploadDir, 0o755); err != nil {
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := uuid.NewString() + extensionForMIME(file.MIME)
	path := filepath.Join(r.uploadDir, name)
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		l.ErrorContext(ctx, "Failed to write uploaded image", slog.String("path", path), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "File write failed")
		return uuid.Nil, fmt.Errorf("failed to store uploaded image: %w", err)
	}

	url := strings.TrimSuffix(r.publicBaseURL, "/") + "/" + name
	id, err := r.CreateImageFromURL(ctx, tourID, url)
	if err != nil {
		// The row never existed, drop the orphaned file.
		if rmErr := os.Remove(path); rmErr != nil {
			l.WarnContext(ctx, "Failed to remove orphaned upload", slog.String("path", path), slog.Any("error", rmErr))
		}
		return uuid.Nil, err
	}

	span.SetStatus(codes.Ok, "Image stored")
	return id, nil
}

func (r *PostgresTourRepo) CreateImageFromURL(ctx context.Context, tourID uuid.UUID, url string) (uuid.UUID, error) {
	ctx, span := otel.Tracer("TourRepo").Start(ctx, "CreateImageFromURL", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tour_images"),
		attribute.String("db.tour.id", tourID.String()),
	))
	defer span.End()

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO tour_images (tour_id, url) VALUES ($1, $2) RETURNING id`,
		tourID, url,
	).Scan(&id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return uuid.Nil, fmt.Errorf("database error inserting image: %w", err)
	}
	span.SetStatus(codes.Ok, "Image created")
	return id, nil
}

func (r *PostgresTourRepo) DeleteImage(ctx context.Context, tourID, id uuid.UUID) error {
	return r.deleteChild(ctx, "tour_images", tourID, id)
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
