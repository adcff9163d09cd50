// Package storage defines the library model and its persistence contract.
// The model is an aggregate: a Show owns its Seasons, Episodes and loose
// MediaFiles, and is loaded and saved as a whole.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found in storage")

type Storage interface {
	// GetShowByPath loads the show rooted at the given absolute path.
	GetShowByPath(ctx context.Context, path string) (*Show, error)
	// ListShows returns every show belonging to a datasource. An empty
	// datasource lists all shows.
	ListShows(ctx context.Context, datasource string) ([]*Show, error)
	// SaveShow persists the whole aggregate, creating it when ID is zero.
	// Returns the show's id.
	SaveShow(ctx context.Context, show *Show) (int64, error)
	// DeleteShow removes a show and everything it owns.
	DeleteShow(ctx context.Context, id int64) error
}
