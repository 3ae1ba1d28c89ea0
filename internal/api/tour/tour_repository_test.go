package tour

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceylonroots/tour-admin/internal/types"
)

func setupRepoTest(t *testing.T) (*PostgresTourRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	repo := NewPostgresTourRepo(mockPool, t.TempDir(), "/uploads", testLogger())
	return repo, mockPool
}

func sampleFields() types.TourFields {
	return types.TourFields{
		Name:         "Coastal Loop",
		Location:     "Galle",
		Price:        95,
		Duration:     "2-4 days",
		Rating:       4.5,
		ReviewsCount: 12,
		IsHotDeal:    true,
		Tagline:      "Beaches and forts",
		Description:  "Down the southern coast.",
	}
}

func TestPostgresTourRepo_CreateTourRoot(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	ctx := context.Background()
	fields := sampleFields()
	wantID := uuid.New()

	mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tours`)).
		WithArgs(fields.Name, fields.Location, fields.Price, fields.Duration,
			fields.Rating, fields.ReviewsCount, fields.IsHotDeal,
			fields.Tagline, fields.Description).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(wantID))

	id, err := repo.CreateTourRoot(ctx, fields)
	require.NoError(t, err)
	assert.Equal(t, wantID, id)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresTourRepo_UpdateTourRoot(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	ctx := context.Background()
	fields := sampleFields()
	tourID := uuid.New()

	t.Run("updates existing tour", func(t *testing.T) {
		mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE tours`)).
			WithArgs(fields.Name, fields.Location, fields.Price, fields.Duration,
				fields.Rating, fields.ReviewsCount, fields.IsHotDeal,
				fields.Tagline, fields.Description, tourID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateTourRoot(ctx, tourID, fields))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing tour yields ErrNotFound", func(t *testing.T) {
		mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE tours`)).
			WithArgs(fields.Name, fields.Location, fields.Price, fields.Duration,
				fields.Rating, fields.ReviewsCount, fields.IsHotDeal,
				fields.Tagline, fields.Description, tourID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateTourRoot(ctx, tourID, fields)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestPostgresTourRepo_ChildCreateAndDelete(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	ctx := context.Background()
	tourID := uuid.New()
	childID := uuid.New()

	mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tour_inclusions (tour_id, description) VALUES ($1, $2) RETURNING id`)).
		WithArgs(tourID, "Guide").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(childID))

	id, err := repo.CreateInclusion(ctx, tourID, "Guide")
	require.NoError(t, err)
	assert.Equal(t, childID, id)

	mockPool.ExpectExec(regexp.QuoteMeta(`DELETE FROM tour_inclusions WHERE id = $1 AND tour_id = $2`)).
		WithArgs(childID, tourID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.DeleteInclusion(ctx, tourID, childID))

	// Deleting a child that is already gone (e.g. a stale snapshot id).
	mockPool.ExpectExec(regexp.QuoteMeta(`DELETE FROM tour_inclusions`)).
		WithArgs(childID, tourID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.DeleteInclusion(ctx, tourID, childID), types.ErrNotFound)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresTourRepo_CreateItineraryEntry(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	ctx := context.Background()
	tourID := uuid.New()
	entryID := uuid.New()

	mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tour_itinerary (tour_id, day_number, activity) VALUES ($1, $2, $3) RETURNING id`)).
		WithArgs(tourID, 3, "Tea factory visit").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(entryID))

	id, err := repo.CreateItineraryEntry(ctx, tourID, 3, "Tea factory visit")
	require.NoError(t, err)
	assert.Equal(t, entryID, id)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresTourRepo_CreateImageFromFile(t *testing.T) {
	ctx := context.Background()
	tourID := uuid.New()
	imageID := uuid.New()

	t.Run("stores payload and inserts url", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)

		mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tour_images (tour_id, url) VALUES ($1, $2) RETURNING id`)).
			WithArgs(tourID, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(imageID))

		file := types.MediaSource{
			Kind:     types.MediaSourceFile,
			FileName: "beach.jpg",
			MIME:     "image/jpeg",
			Size:     4,
			Data:     []byte("data"),
		}
		id, err := repo.CreateImageFromFile(ctx, tourID, file)
		require.NoError(t, err)
		assert.Equal(t, imageID, id)

		entries, err := os.ReadDir(repo.uploadDir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, ".jpg", filepath.Ext(entries[0].Name()))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("removes orphaned file when insert fails", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)

		mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tour_images`)).
			WithArgs(tourID, pgxmock.AnyArg()).
			WillReturnError(errors.New("insert failed"))

		file := types.MediaSource{Kind: types.MediaSourceFile, FileName: "a.png", MIME: "image/png", Data: []byte("x")}
		_, err := repo.CreateImageFromFile(ctx, tourID, file)
		require.Error(t, err)

		entries, err := os.ReadDir(repo.uploadDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestPostgresTourRepo_FetchTourAggregate_NotFound(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	ctx := context.Background()
	tourID := uuid.New()

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, location`)).
		WithArgs(tourID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FetchTourAggregate(ctx, tourID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
