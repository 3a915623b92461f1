package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bimatlas/bimatlas/internal/types"
)

// CreateProject creates a project together with its "main" branch in one
// transaction. Returns ErrDuplicateName when the project name is taken.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*types.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", types.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin create project", err)
	}
	defer tx.Rollback()

	p := &types.Project{Name: name, Description: description}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO projects (name, description) VALUES ($1, $2)
		 RETURNING id, created_at`,
		name, description).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: project %q", types.ErrDuplicateName, name)
		}
		return nil, storeErr("insert project", err)
	}

	b := &types.Branch{ProjectID: p.ID, Name: "main"}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO branches (project_id, name) VALUES ($1, 'main')
		 RETURNING id, created_at`,
		p.ID).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, storeErr("insert main branch", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit create project", err)
	}
	p.Branches = []*types.Branch{b}
	return p, nil
}

// GetProject returns a project with its branches.
func (s *Store) GetProject(ctx context.Context, id int64) (*types.Project, error) {
	p := &types.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM projects WHERE id = $1`,
		id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: project %d", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, storeErr("get project", err)
	}

	branches, err := s.ListBranches(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Branches = branches
	return p, nil
}

// ListProjects returns all projects, newest first, without branch detail.
func (s *Store) ListProjects(ctx context.Context) ([]*types.Project, error) {
	rows, err := s.queryContext(ctx,
		`SELECT id, name, description, created_at FROM projects ORDER BY id DESC`)
	if err != nil {
		return nil, storeErr("list projects", err)
	}
	defer rows.Close()

	var projects []*types.Project
	for rows.Next() {
		p := &types.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, storeErr("scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list projects", err)
	}
	return projects, nil
}

// DeleteProject removes a project; branches, revisions and product rows
// cascade. Graph leftovers stay behind but are invisible to branch-scoped
// reads once the branches are gone.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.execContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: project %d", types.ErrNotFound, id)
	}
	return nil
}

// CreateBranch creates a branch within a project. Returns ErrDuplicateName
// when the name is taken within the project and ErrNotFound for an unknown
// project.
func (s *Store) CreateBranch(ctx context.Context, projectID int64, name string) (*types.Branch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: branch name is required", types.ErrValidation)
	}

	b := &types.Branch{ProjectID: projectID, Name: name}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO branches (project_id, name) VALUES ($1, $2)
		 RETURNING id, created_at`,
		projectID, name).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: branch %q in project %d", types.ErrDuplicateName, name, projectID)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: project %d", types.ErrNotFound, projectID)
		}
		return nil, storeErr("insert branch", err)
	}
	return b, nil
}

// GetBranch returns one branch by id.
func (s *Store) GetBranch(ctx context.Context, id int64) (*types.Branch, error) {
	b := &types.Branch{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, created_at FROM branches WHERE id = $1`,
		id).Scan(&b.ID, &b.ProjectID, &b.Name, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: branch %d", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, storeErr("get branch", err)
	}
	return b, nil
}

// ListBranches returns the branches of a project in creation order.
func (s *Store) ListBranches(ctx context.Context, projectID int64) ([]*types.Branch, error) {
	rows, err := s.queryContext(ctx,
		`SELECT id, project_id, name, created_at FROM branches
		 WHERE project_id = $1 ORDER BY id`,
		projectID)
	if err != nil {
		return nil, storeErr("list branches", err)
	}
	defer rows.Close()

	branches := []*types.Branch{}
	for rows.Next() {
		b := &types.Branch{}
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.CreatedAt); err != nil {
			return nil, storeErr("scan branch", err)
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list branches", err)
	}
	return branches, nil
}
