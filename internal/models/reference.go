package models

import "time"

// County is the top level of the administrative location hierarchy.
type County struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Constituency belongs to exactly one county.
type Constituency struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CountyID  string    `db:"county_id" json:"county_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ward belongs to exactly one constituency.
type Ward struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	ConstituencyID string    `db:"constituency_id" json:"constituency_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
