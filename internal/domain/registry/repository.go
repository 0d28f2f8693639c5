package registry

import "context"

type Repository interface {
	// Snapshot loads every registry into one consistent in-memory view.
	// A registry-read failure here blocks the whole run (no partial view).
	Snapshot(ctx context.Context) (*Snapshot, error)
}
