package devices

import "context"

// Repository is the Device Store. Every call is scoped to ownerID.
//
// Get and Update return (nil, nil) when no row matches id and owner.
// Delete reports whether a row was removed and never fails for absence.
// List returns newest created first; a non-empty query filters by name, ignoring case.
type Repository interface {
	List(ctx context.Context, ownerID, query string) ([]Device, error)
	Get(ctx context.Context, ownerID, id string) (*Device, error)
	Create(ctx context.Context, device Device) (*Device, error)
	Update(ctx context.Context, ownerID, id string, patch DevicePatch) (*Device, error)
	Delete(ctx context.Context, ownerID, id string) (bool, error)
}
