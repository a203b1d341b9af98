package domain

import (
	"fmt"
	"time"
)

// SnapshotKey identifies one cached device list.
type SnapshotKey struct {
	UserID int64
	Mode   Mode
}

func (k SnapshotKey) String() string {
	return fmt.Sprintf("%d:%s", k.UserID, k.Mode)
}

// Snapshot is the last successful synchronization for a key.
type Snapshot struct {
	Devices  []UIDevice `json:"devices"`
	SyncedAt time.Time  `json:"syncedAt"`
}
