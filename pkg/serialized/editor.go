package serialized

import "strings"

// ContainsCount decodes data and counts non-overlapping occurrences of term
// across string leaves only. Keys, class names and scalar literals are never
// counted. An empty term counts zero.
func ContainsCount(data []byte, term string) (int, error) {
	v, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return v.Count(term), nil
}

// Replace decodes data, substitutes term with replacement inside every string
// leaf and re-encodes the result. It returns the number of occurrences replaced.
func Replace(data []byte, term, replacement string) ([]byte, int, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, 0, err
	}
	out, n := v.Replaced(term, replacement)
	return out.Encode(), n, nil
}

// Count returns the occurrences of term in string leaves at or below v.
func (v *Value) Count(term string) int {
	if term == "" {
		return 0
	}
	total := 0
	v.Walk(func(node *Value, isKey bool) {
		if !isKey && node.Kind == KindString {
			total += strings.Count(node.Str, term)
		}
	})
	return total
}

// Replaced returns a copy of v with term substituted in every string leaf,
// together with the number of occurrences replaced. v is not modified.
func (v *Value) Replaced(term, replacement string) (*Value, int) {
	if term == "" {
		return v.clone(), 0
	}
	return v.replaced(term, replacement)
}

func (v *Value) replaced(term, replacement string) (*Value, int) {
	out := &Value{Kind: v.Kind, Scalar: v.Scalar, Str: v.Str, Class: v.Class, RefTag: v.RefTag}
	total := 0
	if v.Kind == KindString {
		if n := strings.Count(v.Str, term); n > 0 {
			out.Str = strings.ReplaceAll(v.Str, term, replacement)
			total = n
		}
	}
	if v.Entries != nil {
		out.Entries = make([]Entry, len(v.Entries))
		for i, e := range v.Entries {
			val, n := e.Value.replaced(term, replacement)
			out.Entries[i] = Entry{Key: e.Key.clone(), Value: val}
			total += n
		}
	}
	return out, total
}

func (v *Value) clone() *Value {
	out := &Value{Kind: v.Kind, Scalar: v.Scalar, Str: v.Str, Class: v.Class, RefTag: v.RefTag}
	if v.Entries != nil {
		out.Entries = make([]Entry, len(v.Entries))
		for i, e := range v.Entries {
			out.Entries[i] = Entry{Key: e.Key.clone(), Value: e.Value.clone()}
		}
	}
	return out
}
