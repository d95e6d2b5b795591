package ragdoc

import (
	"context"
	"net/url"
	"time"
)

// Source is a registered documentation page.
type Source struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ContentHash string    `json:"contentHash"`
	CreatedAt   time.Time `json:"createdAt"`
	IndexedAt   time.Time `json:"indexedAt"`
}

// Validate returns an error if the source contains invalid fields.
func (s *Source) Validate() error {
	if s.URL == "" {
		return Errorf(EINVALID, "source URL required")
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Errorf(EINVALID, "source URL must be an absolute http(s) URL: %q", s.URL)
	}
	return nil
}

// Indexed reports whether the source has been indexed at least once.
func (s *Source) Indexed() bool {
	return !s.IndexedAt.IsZero()
}

// SourceService represents a service for managing sources.
type SourceService interface {
	// CreateSource registers a new source.
	// Returns EINVALID if the URL is malformed or already registered.
	CreateSource(ctx context.Context, source *Source) error

	// FindSourceByID retrieves a source by ID.
	// Returns ENOTFOUND if source does not exist.
	FindSourceByID(ctx context.Context, id string) (*Source, error)

	// FindSources retrieves sources matching the filter.
	FindSources(ctx context.Context, filter SourceFilter) ([]*Source, error)

	// UpdateSource updates an existing source.
	// Returns ENOTFOUND if source does not exist.
	UpdateSource(ctx context.Context, id string, upd SourceUpdate) (*Source, error)

	// DeleteSource permanently removes a source and its sections.
	// Returns ENOTFOUND if source does not exist.
	DeleteSource(ctx context.Context, id string) error
}

// SourceFilter represents a filter for FindSources.
type SourceFilter struct {
	ID  *string `json:"id"`
	URL *string `json:"url"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// SourceUpdate represents fields that can be updated on a source.
type SourceUpdate struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ContentHash *string    `json:"contentHash"`
	IndexedAt   *time.Time `json:"indexedAt"`
}
