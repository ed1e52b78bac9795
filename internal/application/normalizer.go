package application

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/ahrav/go-dossier/internal/domain"
)

// KeyChain is an ordered list of attribute keys that may hold the same
// semantic value. Lookups return the first usable match.
type KeyChain []string

// Attribute key chains, in priority order.
var (
	// TextKeys locate the passage text.
	TextKeys = KeyChain{"text_preview", "text", "content", "chunk_text", "body"}
	// DocumentKeys locate a bates or document identifier.
	DocumentKeys = KeyChain{"bates_number", "document_id", "id"}
	// DatasetKeys locate the dataset identifier.
	DatasetKeys = KeyChain{"dataset_number", "dataset", "dataset_id"}
	// PageKeys locate the page count.
	PageKeys = KeyChain{"page_count", "pages"}
	// URLKeys locate a link to the original scan.
	URLKeys = KeyChain{"doj_url"}
	// PrevChunkKeys and NextChunkKeys locate neighbouring passages.
	PrevChunkKeys = KeyChain{"prev_chunk", "prevChunk"}
	NextChunkKeys = KeyChain{"next_chunk", "nextChunk"}
)

// LookupText returns the first string value that is not blank.
// Non-string values never count as text.
func (k KeyChain) LookupText(attrs map[string]any) (string, bool) {
	for _, key := range k {
		s, ok := attrs[key].(string)
		if ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// Lookup returns the first scalar value rendered as a string.
// Strings, numbers and booleans qualify; blank strings, nulls, maps and
// slices are skipped.
func (k KeyChain) Lookup(attrs map[string]any) (string, bool) {
	for _, key := range k {
		if s, ok := scalarString(attrs[key]); ok {
			return s, true
		}
	}
	return "", false
}

// LookupOr is Lookup with a fallback value.
func (k KeyChain) LookupOr(attrs map[string]any, fallback string) string {
	if s, ok := k.Lookup(attrs); ok {
		return s
	}
	return fallback
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return "", false
		}
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// NormalizeCandidates maps raw candidates into evidence in two phases.
// First every candidate becomes an Evidence, keeping its original index for
// the `source-<index>` fallback id. Then items without text are dropped.
// Input order is preserved.
func NormalizeCandidates(candidates []domain.Candidate, logger *slog.Logger) []domain.Evidence {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	all := make([]domain.Evidence, 0, len(candidates))
	for i, c := range candidates {
		attrs := c.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}

		text, ok := TextKeys.LookupText(attrs)
		if !ok && i == 0 {
			logger.Warn("first candidate has no text",
				"keys", slices.Sorted(maps.Keys(attrs)))
		}

		id := c.ID
		if id == "" {
			id = fmt.Sprintf("source-%d", i)
		}

		var relevance float64
		if c.Score != nil {
			relevance = *c.Score
		}

		prev, _ := PrevChunkKeys.LookupText(attrs)
		next, _ := NextChunkKeys.LookupText(attrs)

		all = append(all, domain.Evidence{
			ID:         id,
			Text:       text,
			Attributes: attrs,
			Relevance:  relevance,
			PrevChunk:  prev,
			NextChunk:  next,
		})
	}

	kept := slices.DeleteFunc(slices.Clone(all), func(e domain.Evidence) bool {
		return e.Text == ""
	})
	if dropped := len(all) - len(kept); dropped > 0 {
		logger.Warn("dropped candidates without text", "dropped", dropped, "kept", len(kept))
	}
	return kept
}
