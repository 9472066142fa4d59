package core

import (
	"slices"
	"strings"
)

// NormalizeName returns the natural key for an entity name: trimmed,
// inner whitespace collapsed, lower-cased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NormalizeRelationshipType returns the canonical form of a relationship
// type: upper-cased with spaces and dashes folded to underscores.
func NormalizeRelationshipType(t string) string {
	t = strings.Join(strings.Fields(t), "_")
	t = strings.ReplaceAll(t, "-", "_")
	return strings.ToUpper(t)
}

// MergeChunkIDs returns the sorted union of two chunk id sets.
func MergeChunkIDs(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return SortedChunkIDs(merged)
}

// SortedChunkIDs returns ids sorted with duplicates and empty ids removed.
func SortedChunkIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// AppendDescription appends addition to existing unless it is empty or
// already present.
func AppendDescription(existing, addition string) string {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return existing
	}
	if existing == "" {
		return addition
	}
	if strings.Contains(strings.ToLower(existing), strings.ToLower(addition)) {
		return existing
	}
	return existing + "; " + addition
}

// MergeEntity folds incoming into stored following merge-on-insert rules.
// The stored surface name is kept; a stub's type is replaced by the first
// concrete type seen.
func MergeEntity(stored, incoming Entity) Entity {
	merged := stored
	if merged.Type == EntityTypeUnknown && incoming.Type != EntityTypeUnknown {
		merged.Type = incoming.Type
	}
	merged.Description = AppendDescription(stored.Description, incoming.Description)
	merged.SourceChunkIDs = MergeChunkIDs(stored.SourceChunkIDs, incoming.SourceChunkIDs)
	return merged
}

// MergeRelationship folds incoming into stored.
func MergeRelationship(stored, incoming Relationship) Relationship {
	merged := stored
	merged.Description = AppendDescription(stored.Description, incoming.Description)
	merged.SourceChunkIDs = MergeChunkIDs(stored.SourceChunkIDs, incoming.SourceChunkIDs)
	return merged
}
