package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
)

type urlKeeper interface {
	FindURLByShortKey(ctx context.Context, shortKey string) (models.URLRecord, bool, error)
	GetNumberOfShortenedURLs(ctx context.Context) (int64, error)
	GetNumberOfUsers(ctx context.Context) (int64, error)
}

// ResolverHandler serves the internal read-only RPC surface.
type ResolverHandler struct {
	db urlKeeper
}

// NewResolverHandler returns a handler backed by the given storage.
func NewResolverHandler(db urlKeeper) *ResolverHandler {
	return &ResolverHandler{db: db}
}

// Resolve returns the record stored under the requested short key.
func (h *ResolverHandler) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	if req.GetShortKey() == "" {
		return nil, status.Error(codes.InvalidArgument, "short key must not be empty")
	}

	record, found, err := h.db.FindURLByShortKey(ctx, req.GetShortKey())
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.FindURLByShortKey()`: ", zap.Error(err))

		return nil, status.Error(codes.Internal, "failed to resolve short key")
	}
	if !found {
		return nil, status.Error(codes.NotFound, "short key not found")
	}

	return &ResolveResponse{
		LongURL:     record.LongURL,
		OwnerUserID: record.OwnerUserID,
	}, nil
}

// Stats returns the number of shortened URLs and registered users.
func (h *ResolverHandler) Stats(ctx context.Context, _ *StatsRequest) (*StatsResponse, error) {
	urls, err := h.db.GetNumberOfShortenedURLs(ctx)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.GetNumberOfShortenedURLs()`: ", zap.Error(err))

		return nil, status.Error(codes.Internal, "failed to retrieve stats")
	}

	users, err := h.db.GetNumberOfUsers(ctx)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.db.GetNumberOfUsers()`: ", zap.Error(err))

		return nil, status.Error(codes.Internal, "failed to retrieve stats")
	}

	return &StatsResponse{
		Urls:  urls,
		Users: users,
	}, nil
}

// GetShortKey returns the requested short key; it is nil-safe like the
// getters of generated protobuf types.
func (r *ResolveRequest) GetShortKey() string {
	if r == nil {
		return ""
	}

	return r.ShortKey
}
