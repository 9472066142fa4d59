// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// EntityType classifies an entity.
type EntityType int

const (
	// EntityTypeUnknown marks stub entities created for dangling relationship endpoints.
	EntityTypeUnknown EntityType = iota
	EntityTypeConcept
	EntityTypePerson
	EntityTypeOrganization
	EntityTypeTechnology
	EntityTypePublication
)

// EntityTypes lists every known entity type, UNKNOWN last.
var EntityTypes = []EntityType{
	EntityTypeConcept,
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeTechnology,
	EntityTypePublication,
	EntityTypeUnknown,
}

func (t EntityType) String() string {
	switch t {
	case EntityTypeConcept:
		return "CONCEPT"
	case EntityTypePerson:
		return "PERSON"
	case EntityTypeOrganization:
		return "ORGANIZATION"
	case EntityTypeTechnology:
		return "TECHNOLOGY"
	case EntityTypePublication:
		return "PUBLICATION"
	default:
		return "UNKNOWN"
	}
}

// ParseEntityType maps a type label to an EntityType. Matching is
// case-insensitive; unrecognized labels map to EntityTypeUnknown.
func ParseEntityType(s string) EntityType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONCEPT":
		return EntityTypeConcept
	case "PERSON":
		return EntityTypePerson
	case "ORGANIZATION", "ORGANISATION":
		return EntityTypeOrganization
	case "TECHNOLOGY":
		return EntityTypeTechnology
	case "PUBLICATION":
		return EntityTypePublication
	default:
		return EntityTypeUnknown
	}
}

// Category is the intent of a query.
type Category int

const (
	CategoryFactual Category = iota + 1
	CategoryComparative
	CategoryRelational
	CategoryExploratory
	CategoryTrendAnalysis
)

func (c Category) String() string {
	switch c {
	case CategoryFactual:
		return "FACTUAL"
	case CategoryComparative:
		return "COMPARATIVE"
	case CategoryRelational:
		return "RELATIONAL"
	case CategoryExploratory:
		return "EXPLORATORY"
	case CategoryTrendAnalysis:
		return "TREND_ANALYSIS"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// ParseCategory parses a category label such as "COMPARATIVE" or "trend analysis".
func ParseCategory(s string) (Category, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "FACTUAL":
		return CategoryFactual, nil
	case "COMPARATIVE":
		return CategoryComparative, nil
	case "RELATIONAL":
		return CategoryRelational, nil
	case "EXPLORATORY":
		return CategoryExploratory, nil
	case "TREND_ANALYSIS", "TREND":
		return CategoryTrendAnalysis, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

// Strategy is a retrieval mode.
type Strategy int

const (
	// StrategyUnspecified lets the retriever use the classifier's suggestion.
	StrategyUnspecified Strategy = iota
	StrategyVector
	StrategyGraph
	StrategyHybrid
)

func (s Strategy) String() string {
	switch s {
	case StrategyUnspecified:
		return "UNSPECIFIED"
	case StrategyVector:
		return "VECTOR"
	case StrategyGraph:
		return "GRAPH"
	case StrategyHybrid:
		return "HYBRID"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Valid reports whether s names a concrete strategy.
func (s Strategy) Valid() bool {
	return s == StrategyVector || s == StrategyGraph || s == StrategyHybrid
}

// ParseStrategy parses a strategy label. Unknown labels fail with ErrInvalidStrategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VECTOR", "VECTOR_ONLY":
		return StrategyVector, nil
	case "GRAPH", "GRAPH_ONLY":
		return StrategyGraph, nil
	case "HYBRID":
		return StrategyHybrid, nil
	default:
		return StrategyUnspecified, fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
}

// StrategyFor maps a query category to its default retrieval strategy.
func StrategyFor(c Category) Strategy {
	switch c {
	case CategoryFactual:
		return StrategyVector
	case CategoryRelational:
		return StrategyGraph
	case CategoryComparative, CategoryExploratory, CategoryTrendAnalysis:
		return StrategyHybrid
	default:
		return StrategyVector
	}
}

// RetrievalParams are the result count and traversal depth suited to a category.
type RetrievalParams struct {
	NResults   int
	GraphDepth int
}

// ParamsFor returns the per-category retrieval parameters.
func ParamsFor(c Category) RetrievalParams {
	switch c {
	case CategoryComparative:
		return RetrievalParams{NResults: 8, GraphDepth: 2}
	case CategoryRelational:
		return RetrievalParams{NResults: 5, GraphDepth: 3}
	case CategoryExploratory:
		return RetrievalParams{NResults: 10, GraphDepth: 2}
	case CategoryTrendAnalysis:
		return RetrievalParams{NResults: 15, GraphDepth: 3}
	default:
		return RetrievalParams{NResults: 3, GraphDepth: 0}
	}
}

// Origin records which retrieval branch produced a result.
type Origin int

const (
	OriginVector Origin = iota + 1
	OriginGraph
	OriginBoth
)

func (o Origin) String() string {
	switch o {
	case OriginVector:
		return "VECTOR"
	case OriginGraph:
		return "GRAPH"
	case OriginBoth:
		return "BOTH"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

// Priority orders origins for ranking ties: BOTH before GRAPH before VECTOR.
// Lower values sort first.
func (o Origin) Priority() int {
	switch o {
	case OriginBoth:
		return 0
	case OriginGraph:
		return 1
	case OriginVector:
		return 2
	default:
		return 3
	}
}

// AnalysisSource records which policy produced a QueryAnalysis.
type AnalysisSource int

const (
	AnalysisSourceHeuristic AnalysisSource = iota + 1
	AnalysisSourceLLM
)

func (s AnalysisSource) String() string {
	switch s {
	case AnalysisSourceHeuristic:
		return "heuristic"
	case AnalysisSourceLLM:
		return "llm"
	default:
		return "unknown"
	}
}
