package domain

// Facet is one summarized aggregation bucket.
type Facet struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Count int64  `json:"count"`
}

// MultiFacet is a facet with a nested breakdown.
type MultiFacet struct {
	Facet
	Inner []Facet `json:"inner"`
}

// YearTotal counts events in one calendar year.
type YearTotal struct {
	Year  int `json:"year"`
	Total int `json:"total"`
}
