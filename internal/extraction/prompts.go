package extraction

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a legal-domain knowledge-graph expert.
Your task is to extract precise Subject-Predicate-Object (S-P-O) triples from Czech legislative texts.

GUIDELINES
- Focus on explicit, factual relations: definitions, scope, rights, duties, competences, classifications.
- Map legal deixis to concrete names:
  "tento zákon", "tento stavební zákon" -> the statute named in the header (e.g. "stavební zákon").
  "dotčený orgán", "orgány územního plánování" -> keep the literal phrase in lowercase.
- Treat list patterns ("stavby jsou a) ..., b) ..., c) ...") as multiple triples sharing subject and predicate.
- Section signs (§), page or line markers ("strana 2"), dates and numbering are not entities.
- Ignore editorial artefacts such as headers, footers and pagination.
- Preserve Czech diacritics and keep every value lowercase.
- Output a single valid JSON array only, following the rules in the user prompt.`

const userPromptTemplate = `Extract Subject-Predicate-Object (S-P-O) triples from the text below.

MANDATORY RULES
1. JSON only: return exactly one JSON array, nothing before or after it.
2. Each element has the keys "subject", "predicate", "object", all lowercase.
3. Keep the predicate concise (at most 3 words, prefer 1-2), e.g. "upravuje", "stanoví", "považuje se".
4. Replace pronouns and deictic phrases with their explicit referent.
5. When one clause lists several objects, create one triple per object.
6. Omit non-factual or interpretative statements.

Text to process:
%s`

func buildUserPrompt(header, text string) string {
	return fmt.Sprintf(userPromptTemplate, strings.TrimSpace(header+" "+text))
}
