package mock

import (
	"context"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.SourceService = (*SourceService)(nil)

// SourceService is a mock implementation of ragdoc.SourceService.
type SourceService struct {
	CreateSourceFn   func(ctx context.Context, source *ragdoc.Source) error
	FindSourceByIDFn func(ctx context.Context, id string) (*ragdoc.Source, error)
	FindSourcesFn    func(ctx context.Context, filter ragdoc.SourceFilter) ([]*ragdoc.Source, error)
	UpdateSourceFn   func(ctx context.Context, id string, upd ragdoc.SourceUpdate) (*ragdoc.Source, error)
	DeleteSourceFn   func(ctx context.Context, id string) error
}

func (s *SourceService) CreateSource(ctx context.Context, source *ragdoc.Source) error {
	return s.CreateSourceFn(ctx, source)
}

func (s *SourceService) FindSourceByID(ctx context.Context, id string) (*ragdoc.Source, error) {
	return s.FindSourceByIDFn(ctx, id)
}

func (s *SourceService) FindSources(ctx context.Context, filter ragdoc.SourceFilter) ([]*ragdoc.Source, error) {
	return s.FindSourcesFn(ctx, filter)
}

func (s *SourceService) UpdateSource(ctx context.Context, id string, upd ragdoc.SourceUpdate) (*ragdoc.Source, error) {
	return s.UpdateSourceFn(ctx, id, upd)
}

func (s *SourceService) DeleteSource(ctx context.Context, id string) error {
	return s.DeleteSourceFn(ctx, id)
}
