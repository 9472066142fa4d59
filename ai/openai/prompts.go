package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/graphrag/ai"
)

const classificationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "category": {
      "type": "string",
      "enum": [%s]
    },
    "key_entities": {
      "type": "array",
      "items": {"type": "string"}
    },
    "reasoning": {
      "type": "string"
    }
  },
  "required": ["category", "key_entities", "reasoning"],
  "additionalProperties": false
}`

const classificationPromptTemplate = `Classify the user's question so a retrieval system can pick the right search strategy.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Categories:
- FACTUAL: a single fact or definition. "What is a transformer model?"
- COMPARATIVE: contrasts two or more things. "How does GPT differ from BERT?"
- RELATIONAL: asks how entities are connected or influence each other. "What papers influenced attention mechanisms?"
- EXPLORATORY: a broad survey of a topic. "What are the recent advances in language models?"
- TREND_ANALYSIS: change over time or across domains. "How has transfer learning evolved in the last 5 years?"

Rules:
- key_entities lists the named things the question is about, exactly as written in the question.
- If the question names nothing specific, return "key_entities": [].
- reasoning is one short sentence.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "How does GPT differ from BERT?"
Output:
{"category":"COMPARATIVE","key_entities":["GPT","BERT"],"reasoning":"Contrasts two named models."}`

const extractionPromptTemplate = `Extract the entities and relationships from the technical text below.

Entity types: %s.

Answer in exactly this format and nothing else:

ENTITIES:
- Name: <name>, Type: <type>, Description: <one sentence>

RELATIONSHIPS:
- (<source name>) -[<RELATIONSHIP_TYPE>]-> (<target name>)

Rules:
- Use the same name for an entity everywhere it appears.
- Relationship types are upper case with underscores, for example AUTHORED, DEVELOPED, INTRODUCES, USES, INFLUENCES, PART_OF, VARIANT_OF, BUILDS_ON, CITES, WORKS_AT, RELATED_TO.
- Only include relationships between entities you listed.
- If there are no relationships, leave the RELATIONSHIPS section empty.

Example input:
"BERT, developed by Google in 2018, uses bidirectional transformers for pre-training."

Example output:
ENTITIES:
- Name: BERT, Type: TECHNOLOGY, Description: Bidirectional encoder representations from transformers
- Name: Google, Type: ORGANIZATION, Description: Technology company
- Name: Bidirectional Transformers, Type: CONCEPT, Description: Transformers that read text in both directions

RELATIONSHIPS:
- (Google) -[DEVELOPED]-> (BERT)
- (BERT) -[USES]-> (Bidirectional Transformers)

Text:
%s`

// buildClassificationPrompt creates the system prompt with categories embedded.
func buildClassificationPrompt() string {
	quoted := make([]string, len(ai.Categories))
	for i, c := range ai.Categories {
		quoted[i] = `"` + c + `"`
	}
	schema := fmt.Sprintf(classificationResponseSchema, strings.Join(quoted, ", "))
	return fmt.Sprintf(classificationPromptTemplate, schema)
}

// buildExtractionPrompt creates the extraction prompt for one chunk of text.
func buildExtractionPrompt(text string) string {
	return fmt.Sprintf(extractionPromptTemplate, strings.Join(ai.EntityTypes, ", "), strings.TrimSpace(text))
}
