package tour

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceylonroots/tour-admin/internal/types"
)

// childCollection describes one collection reconciliation: the snapshot ids
// to delete and the create calls that rebuild the collection from the edit
// buffer, in buffer order.
type childCollection struct {
	name     string
	deleteOp string
	createOp string
	snapshot []uuid.UUID
	deleteFn func(ctx context.Context, id uuid.UUID) error
	creates  []func(ctx context.Context) (uuid.UUID, error)
}

// applyFullReplace reconciles one child collection against the store by
// deleting every snapshot id and then recreating every local item, strictly
// sequentially. No attempt is made to skip unchanged items; every save yields
// new remote ids even for identical content. The first failing call aborts
// the remaining operations for this collection only; completed calls are not
// undone.
func applyFullReplace(ctx context.Context, logger *slog.Logger, c childCollection) error {
	ctx, span := otel.Tracer("TourSync").Start(ctx, "ApplyFullReplace", trace.WithAttributes(
		attribute.String("collection", c.name),
		attribute.Int("snapshot_size", len(c.snapshot)),
		attribute.Int("local_size", len(c.creates)),
	))
	defer span.End()

	l := logger.With(slog.String("collection", c.name))

	for _, id := range c.snapshot {
		if err := c.deleteFn(ctx, id); err != nil {
			l.ErrorContext(ctx, "Child delete failed, aborting collection",
				slog.String("id", id.String()), slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Delete phase failed")
			return &types.RemoteError{Op: c.deleteOp, Err: err}
		}
	}

	for i, create := range c.creates {
		if _, err := create(ctx); err != nil {
			l.ErrorContext(ctx, "Child create failed, aborting collection",
				slog.Int("position", i), slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Create phase failed")
			return &types.RemoteError{Op: c.createOp, Err: err}
		}
	}

	l.DebugContext(ctx, "Collection reconciled",
		slog.Int("deleted", len(c.snapshot)), slog.Int("created", len(c.creates)))
	span.SetStatus(codes.Ok, "Collection reconciled")
	return nil
}
