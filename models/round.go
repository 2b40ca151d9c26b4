package models

import "time"

// RoundConfig describes one round of the event: whether its content is
// visible and the external challenge links it points at.
type RoundConfig struct {
	ID        string    `json:"id" bson:"_id"` // e.g. "round2"
	Title     string    `json:"title" bson:"title"`
	Visible   bool      `json:"isVisible" bson:"isVisible"`
	Links     []string  `json:"links,omitempty" bson:"links,omitempty"`
	UpdatedAt time.Time `json:"lastUpdated" bson:"lastUpdated"`
}

// Question is a single puzzle shown inside a round
type Question struct {
	ID     string `json:"id" bson:"_id"`
	Round  string `json:"round" bson:"round"`
	Order  int    `json:"order" bson:"order"`
	Title  string `json:"title" bson:"title"`
	Body   string `json:"body" bson:"body"`
	Points int    `json:"points" bson:"points"`
}
