package hub

import (
	"context"
	"log/slog"

	"go.klb.dev/dropshelf/internal/decode"
	"go.klb.dev/dropshelf/internal/shelf"
)

const previewLen = 120

// LogItems logs an ingestion at INFO (source, category, kinds) and DEBUG
// (content preview up to 120 chars per item).
func LogItems(logger *slog.Logger, event string, src decode.Source, cat decode.Category, items []shelf.Item) {
	kinds := make([]string, len(items))
	for i, it := range items {
		kinds[i] = string(it.Kind)
	}
	logger.Info(event, "source", src.String(), "category", cat.String(), "kinds", kinds)

	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, it := range items {
		logger.Debug("shelf item", "kind", it.Kind, "id", it.ID, "preview", Preview(it.Content))
	}
}

// Preview shortens s for logging.
func Preview(s string) string {
	r := []rune(s)
	if len(r) > previewLen {
		return string(r[:previewLen]) + "…"
	}
	return s
}
