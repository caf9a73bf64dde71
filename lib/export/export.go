// Package export persists crawl results as human-readable JSON
// documents on disk.
package export

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"quotecrawl/lib/scrapers/quotes"
)

// WriteQuotes writes the quotes document to path, creating parent
// directories as needed. a nil slice is written as an empty array.
func WriteQuotes(path string, list []quotes.Quote) error {
	if list == nil {
		list = []quotes.Quote{}
	}
	return writeJSON(path, list, "quotes", len(list))
}

// WriteAuthors writes the authors document to path, creating parent
// directories as needed. a nil slice is written as an empty array.
func WriteAuthors(path string, list []quotes.Author) error {
	if list == nil {
		list = []quotes.Author{}
	}
	return writeJSON(path, list, "authors", len(list))
}

func writeJSON(path string, doc any, kind string, count int) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		slog.Error("failed to create export directory", "path", path, "err", err)
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create export file", "path", path, "err", err)
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(doc)
	if err != nil {
		slog.Error("failed to encode export file", "path", path, "err", err)
		return err
	}

	slog.Info("wrote export file", "path", path, "kind", kind, "count", count)
	return nil
}
