package types

import "fmt"

// EvidenceKind tells where an evidence item came from.
type EvidenceKind string

const (
	EvidenceInternal EvidenceKind = "internal"
	EvidenceExternal EvidenceKind = "external"
)

// UnknownIdentifier marks an internal item whose policy id could not be resolved.
const UnknownIdentifier = "unknown"

// EvidenceItem is one retrieved fragment with provenance. Version holds the
// policy version for internal items and the retrieval timestamp for external
// ones.
type EvidenceItem struct {
	Kind       EvidenceKind `json:"kind"`
	Identifier string       `json:"identifier"`
	ChunkID    string       `json:"chunk_id,omitempty"`
	Version    string       `json:"version"`
	Text       string       `json:"text"`
	URL        string       `json:"url,omitempty"`
	Source     string       `json:"source,omitempty"`
}

// Ref is a compact provenance reference used in the audit trace.
func (e EvidenceItem) Ref() string {
	if e.Kind == EvidenceExternal {
		return fmt.Sprintf("external:%s", e.URL)
	}
	return fmt.Sprintf("internal:%s@%s#%s", e.Identifier, e.Version, e.ChunkID)
}

// InternalCitation is the stable wire shape of an internal policy citation.
type InternalCitation struct {
	PolicyID string `json:"policy_id"`
	ChunkID  string `json:"chunk_id"`
	Version  string `json:"version"`
	Rule     string `json:"rule"`
}

// ExternalCitation is the stable wire shape of an external intelligence citation.
type ExternalCitation struct {
	URL       string `json:"url"`
	Summary   string `json:"summary"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// InternalCitations converts internal items to their wire shape. Items of
// another kind are skipped. The result is never nil.
func InternalCitations(items []EvidenceItem) []InternalCitation {
	out := make([]InternalCitation, 0, len(items))
	for _, e := range items {
		if e.Kind != EvidenceInternal {
			continue
		}
		out = append(out, InternalCitation{PolicyID: e.Identifier, ChunkID: e.ChunkID, Version: e.Version, Rule: e.Text})
	}
	return out
}

// ExternalCitations converts external items to their wire shape. The result is
// never nil.
func ExternalCitations(items []EvidenceItem) []ExternalCitation {
	out := make([]ExternalCitation, 0, len(items))
	for _, e := range items {
		if e.Kind != EvidenceExternal {
			continue
		}
		out = append(out, ExternalCitation{URL: e.URL, Summary: e.Text, Source: e.Source, Timestamp: e.Version})
	}
	return out
}
