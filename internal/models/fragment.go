package models

import "time"

// CodeFragment is one code cell of a submitted document version.
// Identity is (DocumentVersionID, CellNumber).
type CodeFragment struct {
	ID                string    `bson:"id" json:"id"`
	DocumentVersionID string    `bson:"documentVersionId" json:"documentVersionId"`
	CellNumber        int       `bson:"cellNumber" json:"cellNumber"`
	Source            string    `bson:"source" json:"source"`
	CreatedAt         time.Time `bson:"createdAt" json:"createdAt"`
}
