package trial

import "regexp"

var numericToken = regexp.MustCompile(`\d`)

// countFields prefer a value carrying a parseable numeric token; for the rest,
// longer text is assumed to carry more extracted detail.
var countFields = map[string]bool{
	FieldParticipants: true,
}

// Merge folds partial records, in chunk-index order, into one canonical
// record. The policy is applied independently per field and depends only on
// the order of the input slice, never on when the underlying extraction calls
// completed:
//
//   - no chunk produced a value: the field stays unresolved
//   - exactly one chunk produced a value: it wins
//   - otherwise: structured subvalues beat plain strings; among same-shape
//     values the longest rendering wins, ties broken by earliest chunk; for
//     count-like fields values containing a numeric token are preferred first
//
// The policy is deliberately replaceable behind this function.
func Merge(parts []PartialRecord) CanonicalRecord {
	var out CanonicalRecord
	for _, name := range FieldNames {
		candidates := make([]FieldValue, 0, len(parts))
		for i := range parts {
			if v := parts[i].Field(name); v.Resolved() {
				candidates = append(candidates, *v)
			}
		}
		*out.Field(name) = resolveField(name, candidates)
	}
	return out
}

func resolveField(name string, candidates []FieldValue) FieldValue {
	switch len(candidates) {
	case 0:
		return FieldValue{}
	case 1:
		return candidates[0]
	}

	if structured := filter(candidates, FieldValue.Structured); len(structured) > 0 {
		candidates = structured
	}
	if countFields[name] {
		if numeric := filter(candidates, hasNumericToken); len(numeric) > 0 {
			candidates = numeric
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c.Display()) > len(best.Display()) {
			best = c
		}
	}
	return best
}

func filter(values []FieldValue, keep func(FieldValue) bool) []FieldValue {
	var out []FieldValue
	for _, v := range values {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func hasNumericToken(v FieldValue) bool {
	return numericToken.MatchString(v.Display())
}
