package meta

import (
	"time"

	"gorm.io/datatypes"
)

// Ref is one branch pointer, e.g. "gh-pages".
type Ref struct {
	Name string `gorm:"primaryKey;type:varchar(255)"`

	// CommitHash is the compare-and-swap key: updates only match the hash the writer read.
	CommitHash string `gorm:"type:char(64);not null"`

	// Version counts successful moves of this ref.
	Version int64 `gorm:"default:1"`

	UpdatedAt time.Time
}

// CommitModel is the SQL projection of a vault commit, used for history queries.
type CommitModel struct {
	Hash string `gorm:"primaryKey;type:char(64)"`

	Author    string `gorm:"index;type:varchar(255)"`
	Message   string `gorm:"type:text"`
	Timestamp int64  `gorm:"index"`

	TreeHash string `gorm:"type:char(64);not null"`

	// Parents is a JSON array of commit hashes.
	Parents datatypes.JSON

	// Meta holds deploy details (version, aliases) of the commit.
	Meta datatypes.JSON `gorm:"index:idx_commit_meta"`

	CreatedAt time.Time
}

func (CommitModel) TableName() string {
	return "commits"
}
