package elasticsearch

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SearchResult is a decoded search response.
type SearchResult struct {
	Total        int64
	Hits         []Hit
	Aggregations Aggregations
}

// Hit is one matching document.
type Hit struct {
	ID     string          `json:"_id"`
	Index  string          `json:"_index"`
	Source json.RawMessage `json:"_source"`
	Sort   []any           `json:"sort"`
}

// Decode unmarshals the hit's source into v.
func (h Hit) Decode(v any) error {
	if err := json.Unmarshal(h.Source, v); err != nil {
		return fmt.Errorf("decode hit %s: %w", h.ID, err)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []Hit `json:"hits"`
	} `json:"hits"`
	Aggregations Aggregations `json:"aggregations"`
}

// UnmarshalJSON flattens the backend's hits envelope.
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var raw searchResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Total = raw.Hits.Total.Value
	r.Hits = raw.Hits.Hits
	r.Aggregations = raw.Aggregations
	return nil
}

// Aggregations holds named aggregation results. Values are decoded lazily.
type Aggregations map[string]json.RawMessage

// Get decodes the aggregation called name. ok is false when it is absent.
func (a Aggregations) Get(name string) (*Aggregation, bool) {
	raw, ok := a[name]
	if !ok || len(raw) == 0 {
		return nil, false
	}
	var agg Aggregation
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, false
	}
	return &agg, true
}

// Path walks nested single-bucket aggregations, e.g. "fields_of_science", "subject".
func (a Aggregations) Path(names ...string) (*Aggregation, bool) {
	current := a
	var agg *Aggregation
	for _, name := range names {
		var ok bool
		agg, ok = current.Get(name)
		if !ok {
			return nil, false
		}
		current = agg.Sub
	}
	return agg, agg != nil
}

// Aggregation is a decoded bucket, metric or single-bucket aggregation.
type Aggregation struct {
	DocCount         int64
	SumOtherDocCount int64
	Value            *float64
	Buckets          []Bucket
	Hits             []Hit
	Sub              Aggregations
}

// UnmarshalJSON separates the well-known keys from nested sub-aggregations.
func (a *Aggregation) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key, raw := range fields {
		var err error
		switch key {
		case "doc_count":
			err = json.Unmarshal(raw, &a.DocCount)
		case "sum_other_doc_count":
			err = json.Unmarshal(raw, &a.SumOtherDocCount)
		case "doc_count_error_upper_bound", "meta", "value_as_string":
		case "value":
			err = json.Unmarshal(raw, &a.Value)
		case "buckets":
			err = json.Unmarshal(raw, &a.Buckets)
		case "hits":
			var hits struct {
				Hits []Hit `json:"hits"`
			}
			err = json.Unmarshal(raw, &hits)
			a.Hits = hits.Hits
		default:
			if isObject(raw) {
				if a.Sub == nil {
					a.Sub = Aggregations{}
				}
				a.Sub[key] = raw
			}
		}
		if err != nil {
			return fmt.Errorf("aggregation field %s: %w", key, err)
		}
	}
	return nil
}

// Bucket is one bucket of a multi-bucket aggregation.
type Bucket struct {
	Key         string
	KeyAsString string
	DocCount    int64
	Sub         Aggregations
}

// UnmarshalJSON normalizes numeric keys to strings and keeps sub-aggregations.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key, raw := range fields {
		var err error
		switch key {
		case "key":
			b.Key, err = keyString(raw)
		case "key_as_string":
			err = json.Unmarshal(raw, &b.KeyAsString)
		case "doc_count":
			err = json.Unmarshal(raw, &b.DocCount)
		default:
			if isObject(raw) {
				if b.Sub == nil {
					b.Sub = Aggregations{}
				}
				b.Sub[key] = raw
			}
		}
		if err != nil {
			return fmt.Errorf("bucket field %s: %w", key, err)
		}
	}
	return nil
}

func keyString(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(t), nil
	}
}

func isObject(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
