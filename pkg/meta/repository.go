package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docvault/pkg/core"
	"docvault/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRefNotFound      = errors.New("reference not found")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
	ErrCommitNotFound   = errors.New("commit not found in metadata")
)

// Repository holds every SQL operation of the metadata layer.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. Refs
// -----------------------------------------------------------------------------

func (r *Repository) GetRef(ctx context.Context, name string) (*Ref, error) {
	var ref Ref
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		First(&ref).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRefNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// UpdateRef moves a ref only if it still points at expected (compare-and-swap).
// An empty expected creates the ref and fails if it already exists.
func (r *Repository) UpdateRef(ctx context.Context, name string, newHash, expected types.Hash) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A: create
		if expected.IsZero() {
			ref := Ref{
				Name:       name,
				CommitHash: newHash.String(),
				Version:    1,
			}
			if err := tx.Create(&ref).Error; err != nil {
				// postgres and sqlite report unique violations differently
				if errors.Is(err, gorm.ErrDuplicatedKey) ||
					strings.Contains(err.Error(), "UNIQUE constraint failed") {
					return ErrConcurrentUpdate
				}
				return fmt.Errorf("failed to create ref: %w", err)
			}
			return nil
		}

		// B: UPDATE refs SET commit_hash = ?, version = version + 1 WHERE name = ? AND commit_hash = ?
		result := tx.Model(&Ref{}).
			Where("name = ? AND commit_hash = ?", name, expected.String()).
			Updates(map[string]any{
				"commit_hash": newHash.String(),
				"version":     gorm.Expr("version + 1"),
				"updated_at":  time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		// zero rows: the ref moved (or vanished) since it was read
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	})
}

// -----------------------------------------------------------------------------
// 2. Commit index
// -----------------------------------------------------------------------------

// IndexCommit projects a commit into the commits table. Re-indexing is a no-op.
func (r *Repository) IndexCommit(ctx context.Context, c *core.Commit, extra map[string]any) error {
	parentsJSON, err := json.Marshal(c.ParentHashes())
	if err != nil {
		return fmt.Errorf("failed to marshal parents: %w", err)
	}

	model := CommitModel{
		Hash:      c.ID().String(),
		Author:    c.Author,
		Message:   c.Message,
		Timestamp: c.Timestamp,
		TreeHash:  c.TreeCid.Hash.String(),
		Parents:   datatypes.JSON(parentsJSON),
		CreatedAt: time.Unix(c.Timestamp, 0),
	}
	if len(extra) > 0 {
		metaJSON, err := json.Marshal(extra)
		if err != nil {
			return fmt.Errorf("failed to marshal commit meta: %w", err)
		}
		model.Meta = datatypes.JSON(metaJSON)
	}

	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to index commit: %w", err)
	}
	return nil
}

func (r *Repository) GetCommit(ctx context.Context, hash types.Hash) (*CommitModel, error) {
	var commit CommitModel
	err := r.db.GetConn().WithContext(ctx).
		Where("hash = ?", hash.String()).
		First(&commit).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &commit, nil
}

// ParentsOf decodes the parent list of an indexed commit.
func (m *CommitModel) ParentsOf() ([]types.Hash, error) {
	if len(m.Parents) == 0 {
		return nil, nil
	}
	var parents []types.Hash
	if err := json.Unmarshal(m.Parents, &parents); err != nil {
		return nil, fmt.Errorf("failed to decode parents of %s: %w", m.Hash, err)
	}
	return parents, nil
}
