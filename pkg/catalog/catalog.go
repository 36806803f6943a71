// Package catalog defines the contract between the enrichment pipeline and a
// remote creature catalog: the two request shapes, the records they return and
// the error taxonomy every implementation reports.
package catalog

import (
	"context"
)

// Summary is a minimal list-page record before enrichment.
type Summary struct {
	ID   int
	Name string
}

// Detail is the full record of a single catalog item.
type Detail struct {
	ID   int
	Name string

	// ImageURL is nil when the catalog has no image for the item.
	ImageURL *string

	// PrimaryCategory is empty when the catalog reports no category.
	PrimaryCategory string
}

// Client is the interface a catalog backend must implement.
// Each call is a single round trip: no retries, no caching.
type Client interface {
	// ListPage returns the summaries of one page in catalog order.
	ListPage(ctx context.Context, offset, limit int) ([]Summary, error)

	// GetItem returns the detail record for id.
	GetItem(ctx context.Context, id int) (*Detail, error)
}

// ValidatePage checks list-page arguments.
func ValidatePage(offset, limit int) error {
	if offset < 0 || limit <= 0 {
		return ErrInvalidPage
	}
	return nil
}
