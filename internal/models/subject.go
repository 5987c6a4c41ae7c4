package models

// Subject groups course offerings and carries the prerequisite edges of
// the subject graph.
type Subject struct {
	ID            string      `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	Prerequisites StringArray `db:"prerequisites" json:"prerequisites"`
}
