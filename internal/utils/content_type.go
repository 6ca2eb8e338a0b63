package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// DetectContentType guesses the Content-Type sent with an upload from the object key.
func DetectContentType(key string) string {
	if isTextLike(key) {
		return "text/plain; charset=utf-8"
	}
	if mimeType := mime.TypeByExtension(filepath.Ext(key)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

func isTextLike(key string) bool {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".txt", ".md", ".yaml", ".yml", ".toml", ".ini", ".conf", ".log":
		return true
	}
	return strings.HasPrefix(filepath.Base(key), ".") && filepath.Ext(filepath.Base(key)[1:]) == ""
}
