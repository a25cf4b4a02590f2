package domain

import "time"

// RelationEvent is a directed edge between two identifiers.
type RelationEvent struct {
	ID                   int64          `db:"id"                      json:"-"`
	UUID                 string         `db:"uuid"                    json:"uuid"`
	SubjID               string         `db:"subj_id"                 json:"subj_id"`
	ObjID                string         `db:"obj_id"                  json:"obj_id"`
	Subj                 map[string]any `db:"-"                       json:"subj,omitempty"`
	Obj                  map[string]any `db:"-"                       json:"obj,omitempty"`
	SourceID             string         `db:"source_id"               json:"source_id"`
	SourceToken          string         `db:"source_token"            json:"source_token,omitempty"`
	RelationTypeID       string         `db:"relation_type_id"        json:"relation_type_id"`
	SourceDOI            string         `db:"source_doi"              json:"source_doi,omitempty"`
	TargetDOI            string         `db:"target_doi"              json:"target_doi,omitempty"`
	SourceRelationTypeID string         `db:"source_relation_type_id" json:"source_relation_type_id,omitempty"`
	TargetRelationTypeID string         `db:"target_relation_type_id" json:"target_relation_type_id,omitempty"`
	CitationType         string         `db:"-"                       json:"citation_type,omitempty"`
	Total                int            `db:"total"                   json:"total"`
	License              string         `db:"license"                 json:"license,omitempty"`
	OccurredAt           time.Time      `db:"occurred_at"             json:"occurred_at"`
	CreatedAt            time.Time      `db:"created_at"              json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"              json:"updated_at"`
}

// SubjType is the schema.org @type of the subject, or "".
func (e *RelationEvent) SubjType() string { return schemaType(e.Subj) }

// ObjType is the schema.org @type of the object, or "".
func (e *RelationEvent) ObjType() string { return schemaType(e.Obj) }

func schemaType(m map[string]any) string {
	if m == nil {
		return ""
	}
	s, _ := m["@type"].(string)
	return s
}
