package ai

// QueryClassification is a model's answer to a classification prompt.
type QueryClassification struct {
	// Category is one of Categories, as spelled by the model.
	Category string `json:"category"`

	// KeyEntities are the named things the query is about.
	KeyEntities []string `json:"key_entities"`

	// Reasoning is the model's one-sentence justification.
	Reasoning string `json:"reasoning"`

	// Strategy is the model's suggested strategy. Informational only;
	// the retrieval strategy is always derived from the category.
	Strategy string `json:"strategy,omitempty"`
}

// Extraction holds the graph fragment found in one piece of text.
type Extraction struct {
	Entities      []ExtractedEntity
	Relationships []ExtractedRelationship
}

// IsEmpty reports whether nothing was extracted.
func (e *Extraction) IsEmpty() bool {
	return e == nil || (len(e.Entities) == 0 && len(e.Relationships) == 0)
}

// ExtractedEntity is an entity as named by the extractor.
type ExtractedEntity struct {
	Name        string
	Type        string
	Description string
}

// ExtractedRelationship is a directed, typed edge as named by the extractor.
type ExtractedRelationship struct {
	Source string
	Target string
	Type   string
}

// Categories lists the query categories a classifier may answer with.
var Categories = []string{
	"FACTUAL",
	"COMPARATIVE",
	"RELATIONAL",
	"EXPLORATORY",
	"TREND_ANALYSIS",
}

// EntityTypes lists the entity types an extractor may assign.
var EntityTypes = []string{
	"CONCEPT",
	"PERSON",
	"ORGANIZATION",
	"TECHNOLOGY",
	"PUBLICATION",
}
