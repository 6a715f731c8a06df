package utils

import (
	"mime"
	"path"
	"strings"
)

const DefaultContentType = "application/octet-stream"

// DetectContentType guesses the content type of a file from its name.
func DetectContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".md", ".yaml", ".yml", ".toml", ".log":
		return "text/plain; charset=utf-8"
	case "":
		return DefaultContentType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return DefaultContentType
}
