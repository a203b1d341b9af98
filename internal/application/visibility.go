package application

import (
	"context"

	"hubgate/internal/domain"
)

// DeviceCatalog serves the device list a user may see in a mode.
type DeviceCatalog interface {
	Devices(ctx context.Context, userID int64, mode domain.Mode) ([]domain.UIDevice, error)
}

// requireVisible rejects entities missing from a tenant's device list.
// Admins address every entity on their connection.
func requireVisible(ctx context.Context, catalog DeviceCatalog, relations *domain.UserRelations, mode domain.Mode, entityID string) error {
	if relations.User.Role != domain.RoleTenant {
		return nil
	}

	devices, err := catalog.Devices(ctx, relations.User.ID, mode)
	if err != nil {
		return err
	}
	if _, ok := domain.FindDevice(devices, entityID); !ok {
		return domain.NewError(domain.KindNotFound, domain.MsgDeviceNotFound)
	}
	return nil
}
