package model

// ConceptLinkType classifies why two concepts are related.
type ConceptLinkType string

const (
	LinkSharedElements ConceptLinkType = "shared_elements"
	LinkNameSimilarity ConceptLinkType = "name_similarity"
	LinkStructural     ConceptLinkType = "structural"
	LinkFlowsTo        ConceptLinkType = "flows_to" // directional: this concept feeds the target
)

// ConceptLink is a non-owning reference from one concept to another.
type ConceptLink struct {
	ConceptID string          `json:"conceptId"`
	Type      ConceptLinkType `json:"type"`
	Weight    float64         `json:"weight"`
}

// Concept is a domain or technical notion mined from names, comments and
// structure, tied back to the code elements that evidence it.
type Concept struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	CodeElements    []string      `json:"codeElements,omitempty"` // node IDs
	Confidence      float64       `json:"confidence"`
	Importance      float64       `json:"importance"`
	RelatedConcepts []ConceptLink `json:"relatedConcepts,omitempty"`
	ContentHash     string        `json:"contentHash,omitempty"`
}

// UnitType classifies a semantic unit by its apparent role.
type UnitType string

const (
	UnitModule       UnitType = "module"
	UnitClass        UnitType = "class"
	UnitService      UnitType = "service"
	UnitComponent    UnitType = "component"
	UnitDataStore    UnitType = "datastore"
	UnitSchema       UnitType = "schema"
	UnitPatternGroup UnitType = "pattern_group"
	UnitDirectory    UnitType = "directory"
)

// SemanticProperties summarizes the internal character of a unit.
type SemanticProperties struct {
	Cohesion         float64  `json:"cohesion"`
	Size             int      `json:"size"`
	DominantConcept  string   `json:"dominantConcept,omitempty"`
	DominantNodeType NodeType `json:"dominantNodeType,omitempty"`
}

// SemanticUnit is a cohesive group of code elements that belong together
// conceptually. Members and concepts are referenced by ID.
type SemanticUnit struct {
	ID          string             `json:"id"`
	Type        UnitType           `json:"type"`
	Name        string             `json:"name"`
	CodeNodeIDs []string           `json:"codeNodeIds"`
	Concepts    []string           `json:"concepts,omitempty"` // concept IDs
	Confidence  float64            `json:"confidence"`
	Properties  SemanticProperties `json:"properties"`
	ContentHash string             `json:"contentHash,omitempty"`
}
