// Package prompt builds the system instructions for every model call the
// pipelines make. Each builder takes the collection schema so the model
// sees the live field inventory, never a hard-coded one.
package prompt

import (
	"fmt"
	"strings"
)

// Schema carries the collection's field inventory and domain vocabulary
// into prompt construction.
type Schema struct {
	Collection    string
	TagFields     []string
	NumericFields []string
	NameFields    []string
	Vocabulary    string
}

// NoInformationAnswer is the canned reply when retrieval finds nothing.
const NoInformationAnswer = "I could not find any relevant information for that question."

const translateFilterTemplate = `You translate a user's request about the %q collection into a JSON filter.

Fields:
- text fields: %s
- numeric fields: %s
%s
Respond with ONLY a JSON object of this exact shape:
{"conditions":[{"field":"<name>","op":"<op>","value":<value>}]}

Allowed ops: "eq", "gt", "gte", "lt", "lte", "in", "match".
- "eq" compares a field to a string or number.
- "gt"/"gte"/"lt"/"lte" compare a numeric field to a number.
- "in" takes {"field":"<name>","op":"in","values":["a","b"]}.
- "match" matches a person or entity name ignoring letter case and extra whitespace, anchored to the whole value.
Any equality against one of these name fields MUST use "match" instead of "eq": %s.
Never invent fields. If the request needs no filtering, return {"conditions":[]}.`

// TranslateFilter builds the instruction for the filter translation stage.
func TranslateFilter(s Schema) string {
	return fmt.Sprintf(
		translateFilterTemplate,
		s.Collection,
		fieldList(s.TagFields),
		fieldList(s.NumericFields),
		vocabularySection(s.Vocabulary),
		fieldList(s.NameFields),
	)
}

const optimizeTemplate = `You optimize a JSON filter over the %q collection for index-friendly execution.

You may reorder conditions, collapse redundant ones, or anchor pattern values, but the
set of records the filter selects MUST stay identical. Keep the same JSON shape:
{"conditions":[{"field":"<name>","op":"<op>","value":<value>}]}
with the same allowed ops ("eq", "gt", "gte", "lt", "lte", "in", "match").
If no improvement applies, return the filter unchanged. Respond with ONLY the JSON object.`

// Optimize builds the instruction for the filter optimization stage.
func Optimize(s Schema) string {
	return fmt.Sprintf(optimizeTemplate, s.Collection)
}

const specificityTemplate = `You judge how specific a user's request against a database is.

A specific lookup names concrete entities, fields, or thresholds ("managers with ctc above 50").
A vague or conversational question does not ("tell me something interesting").

Respond with ONLY a JSON object: {"confidence":<number between 0 and 1>,"reason":"<one sentence>"}.
High confidence means a structured database query will likely answer the request well.`

// Specificity builds the instruction for the specificity scoring stage.
// It deliberately sees only the original input, never the filter.
func Specificity() string {
	return specificityTemplate
}

const synthesizeTemplate = `You answer a user's question using ONLY the context records below.

Do not mention databases, searches, embeddings, or how the context was produced.
If the context is empty or does not contain the answer, say plainly that you have no
relevant information. Do not invent facts.

Context records:
%s`

// Synthesize builds the instruction for the answer synthesis stage.
func Synthesize(contextRecords []string) string {
	ctx := "(none)"
	if len(contextRecords) > 0 {
		ctx = "- " + strings.Join(contextRecords, "\n- ")
	}
	return fmt.Sprintf(synthesizeTemplate, ctx)
}

const translateUpdateTemplate = `You translate a user's change request about the %q collection into a JSON filter plus mutation.

Fields:
- text fields: %s
- numeric fields: %s
%s
Respond with ONLY a JSON object of this exact shape:
{"filter":{"conditions":[{"field":"<name>","op":"<op>","value":<value>}]},"mutation":{"assignments":[{"field":"<name>","op":"set","value":<value>}]}}

Filter ops: "eq", "gt", "gte", "lt", "lte", "in", "match". Any equality against one of
these name fields MUST use "match": %s.
The ONLY mutation op is "set" (replace the field's value).
The filter must pin down specific records. If the request is ambiguous, or would change
multiple records without naming an explicit specific key, refuse by returning:
{"filter":{"conditions":[]},"mutation":{"assignments":[]}}`

// TranslateUpdate builds the instruction for the update translation stage.
func TranslateUpdate(s Schema) string {
	return fmt.Sprintf(
		translateUpdateTemplate,
		s.Collection,
		fieldList(s.TagFields),
		fieldList(s.NumericFields),
		vocabularySection(s.Vocabulary),
		fieldList(s.NameFields),
	)
}

func fieldList(fields []string) string {
	if len(fields) == 0 {
		return "(none)"
	}
	return strings.Join(fields, ", ")
}

func vocabularySection(vocab string) string {
	if vocab == "" {
		return ""
	}
	return "Domain vocabulary:\n" + strings.TrimSpace(vocab) + "\n"
}
