package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bimatlas/bimatlas/internal/types"
)

// RevisionDiff compares the visible product sets of two revisions on one
// branch. A product counts as modified when it is visible at both revisions
// through different row versions; a rewrite that restores identical content
// still produces a new row and therefore still reads as modified.
func (s *Store) RevisionDiff(ctx context.Context, branchID, fromRev, toRev int64) (*types.RevisionDiff, error) {
	for _, rev := range []int64{fromRev, toRev} {
		ok, err := s.revisionExists(ctx, branchID, rev)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: revision %d on branch %d", types.ErrNotFound, rev, branchID)
		}
	}
	const query = `
		WITH at_from AS (
			SELECT id, global_id, ifc_class, name FROM ifc_products
			WHERE branch_id = $1 AND valid_from_rev <= $2
			  AND (valid_to_rev IS NULL OR valid_to_rev > $2)
		), at_to AS (
			SELECT id, global_id, ifc_class, name FROM ifc_products
			WHERE branch_id = $1 AND valid_from_rev <= $3
			  AND (valid_to_rev IS NULL OR valid_to_rev > $3)
		)
		SELECT COALESCE(t.global_id, f.global_id),
		       COALESCE(t.ifc_class, f.ifc_class),
		       COALESCE(t.name, f.name),
		       CASE WHEN f.id IS NULL THEN 'added'
		            WHEN t.id IS NULL THEN 'deleted'
		            ELSE 'modified' END
		FROM at_from f
		FULL OUTER JOIN at_to t ON f.global_id = t.global_id
		WHERE f.id IS NULL OR t.id IS NULL OR f.id <> t.id
		ORDER BY 1`

	rows, err := s.queryContext(ctx, query, branchID, fromRev, toRev)
	if err != nil {
		return nil, storeErr("revision diff", err)
	}
	defer rows.Close()

	diff := &types.RevisionDiff{
		FromRevision: fromRev,
		ToRevision:   toRev,
		Added:        []*types.DiffEntry{},
		Modified:     []*types.DiffEntry{},
		Deleted:      []*types.DiffEntry{},
	}
	for rows.Next() {
		e := &types.DiffEntry{}
		var name sql.NullString
		var change string
		if err := rows.Scan(&e.GlobalID, &e.IfcClass, &name, &change); err != nil {
			return nil, storeErr("scan diff row", err)
		}
		e.Name = name.String
		e.ChangeType = types.ChangeType(change)
		switch e.ChangeType {
		case types.ChangeAdded:
			diff.Added = append(diff.Added, e)
		case types.ChangeModified:
			diff.Modified = append(diff.Modified, e)
		case types.ChangeDeleted:
			diff.Deleted = append(diff.Deleted, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("revision diff", err)
	}
	return diff, nil
}
