package utils

import (
	"mime"
	"path"
	"strings"
)

// DetectContentType guesses a content type from a storage key or file name.
func DetectContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".md", ".txt", ".csv", ".log", ".yaml", ".yml", ".toml":
		return "text/plain; charset=utf-8"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
