package query

// Predicate is one clause of a bool query. Source renders the search DSL.
type Predicate interface {
	Source() map[string]any
}

// Term matches a single exact value.
type Term struct {
	Field           string
	Value           any
	CaseInsensitive bool
}

func (t Term) Source() map[string]any {
	if t.CaseInsensitive {
		return map[string]any{"term": map[string]any{
			t.Field: map[string]any{"value": t.Value, "case_insensitive": true},
		}}
	}
	return map[string]any{"term": map[string]any{t.Field: t.Value}}
}

// Terms matches any of Values.
type Terms struct {
	Field  string
	Values []string
}

func (t Terms) Source() map[string]any {
	return map[string]any{"terms": map[string]any{t.Field: t.Values}}
}

// Range bounds a field. Nil bounds are omitted.
type Range struct {
	Field  string
	GTE    any
	LTE    any
	Format string
}

func (r Range) Source() map[string]any {
	bounds := map[string]any{}
	if r.GTE != nil {
		bounds["gte"] = r.GTE
	}
	if r.LTE != nil {
		bounds["lte"] = r.LTE
	}
	if r.Format != "" {
		bounds["format"] = r.Format
	}
	return map[string]any{"range": map[string]any{r.Field: bounds}}
}

// Exists matches documents with a value for Field.
type Exists struct {
	Field string
}

func (e Exists) Source() map[string]any {
	return map[string]any{"exists": map[string]any{"field": e.Field}}
}

// Sources renders a predicate list.
func Sources(ps []Predicate) []map[string]any {
	out := make([]map[string]any, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Source())
	}
	return out
}
