package goquery_test

import (
	"testing"

	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/goquery"
	"github.com/stretchr/testify/assert"
)

func TestDetector_Detect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want ragdoc.Framework
	}{
		{
			name: "detects Docusaurus from the skip-to-content fallback",
			html: `<html><body><a id="__docusaurus_skipToContent_fallback" href="#">Skip</a></body></html>`,
			want: ragdoc.FrameworkDocusaurus,
		},
		{
			name: "detects MkDocs from data-md attributes",
			html: `<html><body data-md-color-scheme="default"><div data-md-component="content"></div></body></html>`,
			want: ragdoc.FrameworkMkDocs,
		},
		{
			name: "detects Sphinx from the ReadTheDocs sidebar",
			html: `<html><body><nav class="wy-nav-side"></nav></body></html>`,
			want: ragdoc.FrameworkSphinx,
		},
		{
			name: "detects VitePress before VuePress",
			html: `<html><body><div id="VPContent"><div class="theme-default-content"></div></div></body></html>`,
			want: ragdoc.FrameworkVitePress,
		},
		{
			name: "detects VuePress from default theme content",
			html: `<html><body><div class="theme-default-content"></div></body></html>`,
			want: ragdoc.FrameworkVuePress,
		},
		{
			name: "detects GitBook from html classes",
			html: `<html class="circular-corners theme-clean"><body></body></html>`,
			want: ragdoc.FrameworkGitBook,
		},
		{
			name: "detects Nextra from its navbar",
			html: `<html><body><nav class="nextra-navbar"></nav></body></html>`,
			want: ragdoc.FrameworkNextra,
		},
		{
			name: "prefers the meta generator tag",
			html: `<html><head><meta name="generator" content="Sphinx 7.2.6"></head><body><div class="nextra-toc"></div></body></html>`,
			want: ragdoc.FrameworkSphinx,
		},
		{
			name: "returns unknown for plain pages",
			html: `<html><body><main><h1>Hello</h1></main></body></html>`,
			want: ragdoc.FrameworkUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, goquery.NewDetector().Detect(tt.html))
		})
	}
}
