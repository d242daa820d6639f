package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tripvault/internal/middleware"
	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/storage"
	"github.com/mmynk/tripvault/internal/vaulterr"
)

var (
	errNotMember   = errors.New("caller is not a member of this trip")
	errNoCaller    = errors.New("no authenticated caller")
	errHasPayments = errors.New("entry has pending or settled payments")
)

// toConnectError maps ledger errors onto Connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return err
	case vaulterr.IsValidation(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case vaulterr.IsNotFound(err), errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case vaulterr.IsGateway(err):
		return connect.NewError(connect.CodeUnavailable, err)
	case vaulterr.IsInconsistent(err):
		return connect.NewError(connect.CodeDataLoss, err)
	case errors.Is(err, storage.ErrConflict):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// caller returns the authenticated user ID from ctx.
func caller(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errNoCaller)
	}
	return userID, nil
}

// requireMember loads the trip and checks that userID belongs to it.
func requireMember(ctx context.Context, store storage.IdentityStore, tripID, userID string) (*models.Trip, error) {
	if tripID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, vaulterr.Validation("trip_id is required"))
	}
	trip, err := store.GetTrip(ctx, tripID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, vaulterr.NotFound("trip", tripID))
	}
	if err != nil {
		slog.Error("Failed to get trip", "trip_id", tripID, "error", err)
		return nil, toConnectError(err)
	}
	if !trip.HasMember(userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return trip, nil
}
