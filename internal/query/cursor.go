package query

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies to connections when "first" is not given.
	DefaultPageSize = 25
	// MaxPageSize bounds any requested page size.
	MaxPageSize = 1000
	// maxResultWindow is the deepest offset the index serves.
	maxResultWindow = 10000
)

// Cursor is a decoded search_after position: leading sort values followed by
// the unique identifier.
type Cursor []string

// EncodeCursor joins the sort values with "," and base64url-encodes them
// without padding.
func EncodeCursor(values ...any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = sortValueString(v)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(parts, ",")))
}

// DecodeCursor reverses EncodeCursor. valid is false for a blank or
// malformed token, which decodes to the empty cursor, meaning the first page.
func DecodeCursor(token string) (cursor Cursor, valid bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil || len(raw) == 0 {
		return Cursor{}, false
	}
	return Cursor(strings.SplitN(string(raw), ",", 2)), true
}

// Empty reports whether c starts from the beginning.
func (c Cursor) Empty() bool { return len(c) == 0 }

// String is the plain "sortkey,id" form consumed by the Builder.
func (c Cursor) String() string { return strings.Join(c, ",") }

// SearchAfter converts a "timestamp,uid" cursor into search_after values.
// An unparsable timestamp becomes 0.
func SearchAfter(plain string) []any {
	if plain == "" {
		return []any{int64(0), ""}
	}
	ts, uid, _ := strings.Cut(plain, ",")
	n, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		n = int64(atoi(ts))
	}
	return []any{n, uid}
}

// ClampPageSize applies the default and the upper bound. A nil size means
// unspecified; 0 is kept and means "no hits, aggregations only".
func ClampPageSize(size *int) int {
	if size == nil {
		return DefaultPageSize
	}
	switch {
	case *size < 0:
		return 0
	case *size > MaxPageSize:
		return MaxPageSize
	}
	return *size
}

// ClampPageNumber bounds offset-style page numbers so size*number stays
// within the result window: 400 pages at the default size.
func ClampPageNumber(number, size int) int {
	maxNumber := 1
	if size > 0 {
		maxNumber = maxResultWindow / size
	}
	if number < 1 {
		return 1
	}
	return min(number, maxNumber)
}

func sortValueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
