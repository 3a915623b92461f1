package postgres

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimatlas/bimatlas/internal/diff"
	"github.com/bimatlas/bimatlas/internal/ifc"
	"github.com/bimatlas/bimatlas/internal/types"
)

// branchLockNamespace partitions the advisory lock space so branch locks
// cannot collide with other advisory locks on the same database.
const branchLockNamespace int64 = 0x42494D41 << 32

// mirrorParallelism bounds concurrent graph writes within a mirror phase.
const mirrorParallelism = 8

func branchLockKey(branchID int64) int64 {
	return branchLockNamespace | (branchID & 0xFFFFFFFF)
}

// Ingest runs the revision writer: extract the IFC file, then in a single
// transaction create the revision, diff against the branch's open rows,
// close superseded rows and insert new ones. The commit is the point of
// truth. The graph mirror runs afterwards, best-effort: relational state is
// authoritative and a failed mirror write is logged, never fatal, and healed
// by the idempotent close-if-open / match-before-create statements on the
// next ingestion.
func (s *Store) Ingest(ctx context.Context, branchID int64, ifcPath, label string) (*types.IngestionResult, error) {
	if _, err := s.GetBranch(ctx, branchID); err != nil {
		return nil, err
	}

	extraction, err := s.extractor.ExtractFile(ifcPath)
	if err != nil {
		return nil, err
	}
	if len(extraction.Products) == 0 {
		return nil, fmt.Errorf("%w: no IFC products found in %s", types.ErrExtraction, filepath.Base(ifcPath))
	}
	for _, d := range extraction.Diagnostics {
		s.log.Warn("extraction diagnostic", zap.Int64("branch_id", branchID), zap.String("detail", d))
	}

	byGID := extraction.ProductsByGID()
	next := make(map[string]string, len(byGID))
	for gid, rec := range byGID {
		next[gid] = rec.ContentHash
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin ingestion", err)
	}
	defer tx.Rollback()

	// One writer per branch at a time. The lock releases with the
	// transaction; readers are never blocked.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, branchLockKey(branchID)); err != nil {
		return nil, storeErr("acquire branch lock", err)
	}

	var rev int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO revisions (branch_id, label, source_filename) VALUES ($1, $2, $3) RETURNING id`,
		branchID, label, filepath.Base(ifcPath)).Scan(&rev)
	if err != nil {
		return nil, storeErr("insert revision", err)
	}

	open, err := openHashes(ctx, tx, branchID)
	if err != nil {
		return nil, err
	}
	d := diff.Compute(open, next)

	toClose := d.ToClose()
	if len(toClose) > 0 {
		res, err := tx.ExecContext(ctx,
			`UPDATE ifc_products SET valid_to_rev = $1
			 WHERE branch_id = $2 AND valid_to_rev IS NULL AND global_id = ANY($3)`,
			rev, branchID, toClose)
		if err != nil {
			return nil, storeErr("close product rows", err)
		}
		if n, _ := res.RowsAffected(); n != int64(len(toClose)) {
			return nil, fmt.Errorf("%w: expected to close %d rows on branch %d, closed %d",
				types.ErrConflict, len(toClose), branchID, n)
		}
	}

	changed := append(append([]string{}, d.Added...), d.Modified...)
	if len(changed) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ifc_products (branch_id, global_id, ifc_class, name,
				description, object_type, tag, contained_in,
				vertices, normals, faces, matrix, content_hash,
				valid_from_rev, valid_to_rev)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULL)`)
		if err != nil {
			return nil, storeErr("prepare product insert", err)
		}
		defer stmt.Close()

		for _, gid := range changed {
			rec := byGID[gid]
			_, err := stmt.ExecContext(ctx,
				branchID, rec.GlobalID, rec.IfcClass, rec.Name,
				rec.Description, rec.ObjectType, rec.Tag, rec.ContainedIn,
				rec.Vertices, rec.Normals, rec.Faces, rec.Matrix, rec.ContentHash,
				rev)
			if err != nil {
				return nil, storeErr(fmt.Sprintf("insert product %s", gid), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit ingestion", err)
	}

	added, modified, deleted, unchanged := d.Counts()
	result := &types.IngestionResult{
		RevisionID:    rev,
		BranchID:      branchID,
		TotalProducts: len(extraction.Products),
		Added:         added,
		Modified:      modified,
		Deleted:       deleted,
		Unchanged:     unchanged,
	}
	result.EdgesCreated = s.mirrorToGraph(ctx, branchID, rev, d, extraction, next)

	s.log.Info("ingestion complete",
		zap.Int64("branch_id", branchID),
		zap.Int64("revision", rev),
		zap.Int("total", result.TotalProducts),
		zap.Int("added", result.Added),
		zap.Int("modified", result.Modified),
		zap.Int("deleted", result.Deleted),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("edges_created", result.EdgesCreated))
	return result, nil
}

// mirrorToGraph applies a committed revision to the property graph in three
// phases: close superseded nodes (edges first, while the node is still
// matchable), create nodes for new versions, then create edges for
// relationships touching a changed product. Phases run in order; writes
// within a phase run with bounded parallelism. Returns the number of edges
// created.
func (s *Store) mirrorToGraph(ctx context.Context, branchID, rev int64, d *diff.Result, extraction *ifc.Extraction, next map[string]string) int {
	logFail := func(phase, gid string, err error) {
		s.log.Warn("graph mirror write failed",
			zap.String("phase", phase),
			zap.String("global_id", gid),
			zap.Int64("branch_id", branchID),
			zap.Int64("revision", rev),
			zap.Error(err))
	}

	toClose := d.ToClose()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mirrorParallelism)
	for _, gid := range toClose {
		gid := gid
		g.Go(func() error {
			if err := s.graph.CloseEdgesForNode(gctx, gid, rev, branchID); err != nil {
				logFail("close-edges", gid, err)
				return nil
			}
			if err := s.graph.CloseNode(gctx, gid, rev, branchID); err != nil {
				logFail("close-node", gid, err)
			}
			return nil
		})
	}
	g.Wait()

	byGID := extraction.ProductsByGID()
	changedSet := d.ChangedOrNew()
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(mirrorParallelism)
	for gid := range changedSet {
		rec := byGID[gid]
		g.Go(func() error {
			if err := s.graph.CreateNode(gctx, rec.IfcClass, rec.GlobalID, rec.Name, rev, branchID); err != nil {
				logFail("create-node", rec.GlobalID, err)
			}
			return nil
		})
	}
	g.Wait()

	var edges int
	for _, rel := range extraction.Relationships {
		if !changedSet[rel.FromGlobalID] && !changedSet[rel.ToGlobalID] {
			continue
		}
		if _, ok := next[rel.FromGlobalID]; !ok {
			s.log.Warn("skipping dangling relationship",
				zap.String("type", rel.RelationshipType),
				zap.String("missing", rel.FromGlobalID),
				zap.Int64("revision", rev))
			continue
		}
		if _, ok := next[rel.ToGlobalID]; !ok {
			s.log.Warn("skipping dangling relationship",
				zap.String("type", rel.RelationshipType),
				zap.String("missing", rel.ToGlobalID),
				zap.Int64("revision", rev))
			continue
		}
		if err := s.graph.CreateEdge(ctx, rel.FromGlobalID, rel.ToGlobalID, rel.RelationshipType, rev, branchID); err != nil {
			logFail("create-edge", rel.FromGlobalID+"->"+rel.ToGlobalID, err)
			continue
		}
		edges++
	}
	return edges
}
