package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bimatlas/bimatlas/internal/types"
)

const productColumns = `id, branch_id, global_id, ifc_class, name, description,
	object_type, tag, contained_in, vertices, normals, faces, matrix,
	content_hash, valid_from_rev, valid_to_rev`

// visibilityPredicate builds the SCD2 visibility condition for revision $n:
// a row is visible at R iff valid_from_rev <= R and (valid_to_rev IS NULL OR
// valid_to_rev > R).
func visibilityPredicate(args *[]any, rev int64) string {
	*args = append(*args, rev)
	n := len(*args)
	return fmt.Sprintf("valid_from_rev <= $%d AND (valid_to_rev IS NULL OR valid_to_rev > $%d)", n, n)
}

// buildProductWhere renders WHERE clauses and args for a revision-scoped,
// filtered product query.
func buildProductWhere(branchID, rev int64, filter types.ProductFilter) (string, []any) {
	var clauses []string
	var args []any

	args = append(args, branchID)
	clauses = append(clauses, fmt.Sprintf("branch_id = $%d", len(args)))
	clauses = append(clauses, visibilityPredicate(&args, rev))

	if len(filter.IfcClasses) > 0 {
		placeholders := make([]string, len(filter.IfcClasses))
		for i, class := range filter.IfcClasses {
			args = append(args, class)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("ifc_class IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.GlobalID != "" {
		args = append(args, filter.GlobalID)
		clauses = append(clauses, fmt.Sprintf("global_id = $%d", len(args)))
	}
	if filter.ContainedIn != "" {
		args = append(args, filter.ContainedIn)
		clauses = append(clauses, fmt.Sprintf("contained_in = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, "%"+escapeLike(filter.Name)+"%")
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.ObjectType != "" {
		args = append(args, "%"+escapeLike(filter.ObjectType)+"%")
		clauses = append(clauses, fmt.Sprintf("object_type ILIKE $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, "%"+escapeLike(filter.Tag)+"%")
		clauses = append(clauses, fmt.Sprintf("tag ILIKE $%d", len(args)))
	}
	if filter.Description != "" {
		args = append(args, "%"+escapeLike(filter.Description)+"%")
		clauses = append(clauses, fmt.Sprintf("description ILIKE $%d", len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func scanProduct(scan func(dest ...any) error) (*types.Product, error) {
	p := &types.Product{}
	var validTo sql.NullInt64
	err := scan(&p.RowID, &p.BranchID, &p.GlobalID, &p.IfcClass, &p.Name,
		&p.Description, &p.ObjectType, &p.Tag, &p.ContainedIn,
		&p.Vertices, &p.Normals, &p.Faces, &p.Matrix,
		&p.ContentHash, &p.ValidFrom, &validTo)
	if err != nil {
		return nil, err
	}
	if validTo.Valid {
		v := validTo.Int64
		p.ValidTo = &v
	}
	return p, nil
}

// ProductAt returns the version of one product visible at rev on a branch.
func (s *Store) ProductAt(ctx context.Context, branchID int64, globalID string, rev int64) (*types.Product, error) {
	where, args := buildProductWhere(branchID, rev, types.ProductFilter{GlobalID: globalID})
	query := fmt.Sprintf("SELECT %s FROM ifc_products WHERE %s", productColumns, where)

	row := s.db.QueryRowContext(ctx, query, args...)
	p, err := scanProduct(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: product %s at revision %d", types.ErrNotFound, globalID, rev)
	}
	if err != nil {
		return nil, storeErr("get product", err)
	}
	return p, nil
}

// ProductsAt returns the filtered products visible at rev on a branch,
// ordered by ifc_class then global_id for stable pagination-free output.
func (s *Store) ProductsAt(ctx context.Context, branchID, rev int64, filter types.ProductFilter) ([]*types.Product, error) {
	products := []*types.Product{}
	err := s.StreamProductsAt(ctx, branchID, rev, filter, func(p *types.Product) error {
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// CountProductsAt counts the filtered products visible at rev on a branch.
func (s *Store) CountProductsAt(ctx context.Context, branchID, rev int64, filter types.ProductFilter) (int, error) {
	where, args := buildProductWhere(branchID, rev, filter)
	query := fmt.Sprintf("SELECT count(*) FROM ifc_products WHERE %s", where)

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storeErr("count products", err)
	}
	return n, nil
}

// StreamProductsAt walks the filtered products visible at rev row-at-a-time.
// fn returning an error stops the walk and propagates the error, so consumers
// can abort on a closed client connection.
func (s *Store) StreamProductsAt(ctx context.Context, branchID, rev int64, filter types.ProductFilter, fn func(*types.Product) error) error {
	where, args := buildProductWhere(branchID, rev, filter)
	query := fmt.Sprintf("SELECT %s FROM ifc_products WHERE %s ORDER BY ifc_class, global_id",
		productColumns, where)

	rows, err := s.queryContext(ctx, query, args...)
	if err != nil {
		return storeErr("stream products", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return storeErr("scan product", err)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return storeErr("stream products", err)
	}
	return nil
}

// openHashes loads the (global_id -> content_hash) map of open rows on a
// branch inside tx. This is the snapshot the diff engine compares against.
func openHashes(ctx context.Context, tx *sql.Tx, branchID int64) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT global_id, content_hash FROM ifc_products
		 WHERE branch_id = $1 AND valid_to_rev IS NULL`,
		branchID)
	if err != nil {
		return nil, storeErr("load open rows", err)
	}
	defer rows.Close()

	open := make(map[string]string)
	for rows.Next() {
		var gid, hash string
		if err := rows.Scan(&gid, &hash); err != nil {
			return nil, storeErr("scan open row", err)
		}
		open[gid] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load open rows", err)
	}
	return open, nil
}
