package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "notes.txt", want: "text/plain; charset=utf-8"},
		{key: "docs/README.md", want: "text/plain; charset=utf-8"},
		{key: ".bashrc", want: "text/plain; charset=utf-8"},
		{key: "config/app.yml", want: "text/plain; charset=utf-8"},
		{key: "blob.unknownext", want: "application/octet-stream"},
		{key: "noext", want: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectContentType(tt.key))
		})
	}
}
