package tour

import (
	"context"

	"github.com/google/uuid"

	"github.com/ceylonroots/tour-admin/internal/types"
)

// RemoteStore is the operation surface the synchronizer reconciles against.
// One tour aggregate is stored as five independent resources: the root record
// and four child collections, each with its own create/delete calls and no
// transactional guarantee across them.
type RemoteStore interface {
	CreateTourRoot(ctx context.Context, fields types.TourFields) (uuid.UUID, error)
	UpdateTourRoot(ctx context.Context, id uuid.UUID, fields types.TourFields) error
	DeleteTourRoot(ctx context.Context, id uuid.UUID) error

	// FetchTourAggregate loads the root plus all four child collections in
	// stored order. Used when opening an existing tour for edit, to populate
	// both the edit buffer and the id snapshot.
	FetchTourAggregate(ctx context.Context, id uuid.UUID) (*types.TourAggregate, error)
	ListTours(ctx context.Context, hotOnly bool) ([]types.Tour, error)

	CreateInclusion(ctx context.Context, tourID uuid.UUID, description string) (uuid.UUID, error)
	DeleteInclusion(ctx context.Context, tourID, id uuid.UUID) error
	CreateExclusion(ctx context.Context, tourID uuid.UUID, description string) (uuid.UUID, error)
	DeleteExclusion(ctx context.Context, tourID, id uuid.UUID) error

	CreateItineraryEntry(ctx context.Context, tourID uuid.UUID, dayNumber int, activity string) (uuid.UUID, error)
	DeleteItineraryEntry(ctx context.Context, tourID, id uuid.UUID) error

	CreateImageFromFile(ctx context.Context, tourID uuid.UUID, file types.MediaSource) (uuid.UUID, error)
	CreateImageFromURL(ctx context.Context, tourID uuid.UUID, url string) (uuid.UUID, error)
	DeleteImage(ctx context.Context, tourID, id uuid.UUID) error
}
