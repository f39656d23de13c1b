package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want []string
	}{
		{name: "path with trailing slash", url: "https://x.com/a/b/", want: []string{"a", "b"}},
		{name: "not a url", url: "not a url", want: nil},
		{name: "host only", url: "https://x.com", want: nil},
		{name: "relative path", url: "/a/b", want: nil},
		{name: "deep path", url: "http://docs.example.com/guides/setup/install", want: []string{"guides", "setup", "install"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, PathTags(tt.url))
		})
	}
}
