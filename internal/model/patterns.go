package model

// PatternType classifies a discovered pattern.
type PatternType string

const (
	PatternStructural   PatternType = "structural"
	PatternNaming       PatternType = "naming"
	PatternOrganization PatternType = "organization"
	PatternArchitecture PatternType = "architecture"
)

// AffixKind says which end of a name a dominant affix sits on.
type AffixKind string

const (
	AffixPrefix AffixKind = "prefix"
	AffixSuffix AffixKind = "suffix"
)

// PatternSignature is the structural identity of a pattern. Two patterns with
// the same signature describe the same regularity regardless of which run
// discovered them, so signatures feed the pattern's ID and hash.
type PatternSignature struct {
	NodeType   NodeType  `json:"nodeType,omitempty"`
	Convention string    `json:"convention,omitempty"` // casing convention name
	Affix      string    `json:"affix,omitempty"`
	AffixKind  AffixKind `json:"affixKind,omitempty"`
	Directory  string    `json:"directory,omitempty"`
	ChildTypes []string  `json:"childTypes,omitempty"`
	Style      string    `json:"style,omitempty"` // architecture style name
}

// PatternInstance is one occurrence of a pattern, referencing the matching
// node by ID.
type PatternInstance struct {
	NodeID     string  `json:"nodeId"`
	Path       string  `json:"path"`
	MatchScore float64 `json:"matchScore"`
}

// CodePattern is a recurring regularity discovered in the codebase, with the
// evidence that supports it. Confidence reflects coverage of the sampled
// population; importance weighs frequency against codebase size.
type CodePattern struct {
	ID          string            `json:"id"`
	Type        PatternType       `json:"type"`
	Name        string            `json:"name"`
	Signature   PatternSignature  `json:"signature"`
	Instances   []PatternInstance `json:"instances,omitempty"`
	Confidence  float64           `json:"confidence"`
	Frequency   int               `json:"frequency"`
	Importance  float64           `json:"importance"`
	ContentHash string            `json:"contentHash,omitempty"`
}
