package domain

import "context"

// DocumentStore is the remote authoritative store for play counts.
// Documents are keyed by item ID.
type DocumentStore interface {
	// SetPlayCount overwrites the play count field of a document
	SetPlayCount(ctx context.Context, itemID string, count int) error

	// GetPlayCount reads the play count field of a document
	GetPlayCount(ctx context.Context, itemID string) (int, error)
}
