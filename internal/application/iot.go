package application

import (
	"context"
	"time"

	"hubgate/internal/domain"
)

// HubGateway is the hub's HTTP surface. Every call targets the endpoint named
// by the handle, so one gateway serves every user and mode.
type HubGateway interface {
	FetchAllStates(ctx context.Context, h domain.HubHandle) ([]domain.RawDeviceState, error)
	FetchState(ctx context.Context, h domain.HubHandle, entityID string) (*domain.RawDeviceState, error)
	FetchMetadata(ctx context.Context, h domain.HubHandle) ([]domain.DeviceMetadata, error)
	InvokeService(ctx context.Context, h domain.HubHandle, call domain.ServiceCall) error
	Probe(ctx context.Context, h domain.HubHandle, timeout time.Duration) bool
}
