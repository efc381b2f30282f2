package permission

import "context"

// Repository defines the storage contract for permission records.
type Repository interface {
	Allowed(ctx context.Context, role, collection string) (bool, error)
}
