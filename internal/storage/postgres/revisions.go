package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bimatlas/bimatlas/internal/types"
)

// ListRevisions returns the revisions of a branch, oldest first.
func (s *Store) ListRevisions(ctx context.Context, branchID int64) ([]*types.Revision, error) {
	rows, err := s.queryContext(ctx,
		`SELECT id, branch_id, label, source_filename, created_at
		 FROM revisions WHERE branch_id = $1 ORDER BY id`,
		branchID)
	if err != nil {
		return nil, storeErr("list revisions", err)
	}
	defer rows.Close()

	revisions := []*types.Revision{}
	for rows.Next() {
		r := &types.Revision{}
		if err := rows.Scan(&r.ID, &r.BranchID, &r.Label, &r.SourceFilename, &r.CreatedAt); err != nil {
			return nil, storeErr("scan revision", err)
		}
		revisions = append(revisions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list revisions", err)
	}
	return revisions, nil
}

// LatestRevision returns the highest revision id on a branch, or ErrNotFound
// when the branch has no revisions yet.
func (s *Store) LatestRevision(ctx context.Context, branchID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM revisions WHERE branch_id = $1 ORDER BY id DESC LIMIT 1`,
		branchID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: branch %d has no revisions", types.ErrNotFound, branchID)
	}
	if err != nil {
		return 0, storeErr("latest revision", err)
	}
	return id, nil
}

// revisionExists reports whether a revision belongs to the branch.
func (s *Store) revisionExists(ctx context.Context, branchID, rev int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM revisions WHERE id = $1 AND branch_id = $2`,
		rev, branchID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storeErr("check revision", err)
	}
	return true, nil
}
