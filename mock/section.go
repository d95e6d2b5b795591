package mock

import (
	"context"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.SectionService = (*SectionService)(nil)

// SectionService is a mock implementation of ragdoc.SectionService.
type SectionService struct {
	ReplaceSectionsFn func(ctx context.Context, sourceID string, sections []*ragdoc.Section) error
	FindSectionsFn    func(ctx context.Context, sourceID string) ([]*ragdoc.Section, error)
}

func (s *SectionService) ReplaceSections(ctx context.Context, sourceID string, sections []*ragdoc.Section) error {
	return s.ReplaceSectionsFn(ctx, sourceID, sections)
}

func (s *SectionService) FindSections(ctx context.Context, sourceID string) ([]*ragdoc.Section, error) {
	return s.FindSectionsFn(ctx, sourceID)
}

var _ ragdoc.SectionBuilder = (*SectionBuilder)(nil)

// SectionBuilder is a mock implementation of ragdoc.SectionBuilder.
type SectionBuilder struct {
	BuildFn func(markup string, baseURL string) (*ragdoc.Page, error)
}

func (b *SectionBuilder) Build(markup string, baseURL string) (*ragdoc.Page, error) {
	return b.BuildFn(markup, baseURL)
}
