package domain

import "time"

// Researcher is a person known by ORCID iD.
type Researcher struct {
	ID         int64     `db:"id"          json:"-"`
	UID        string    `db:"uid"         json:"uid"`
	Name       string    `db:"name"        json:"name,omitempty"`
	GivenNames string    `db:"given_names" json:"givenNames,omitempty"`
	FamilyName string    `db:"family_name" json:"familyName,omitempty"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}
