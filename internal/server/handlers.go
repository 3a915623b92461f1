package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bimatlas/bimatlas/internal/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid JSON body", types.ErrValidation))
		return
	}
	p, err := s.store.CreateProject(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if projects == nil {
		projects = []*types.Project{}
	}
	s.writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createBranchRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req createBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid JSON body", types.ErrValidation))
		return
	}
	b, err := s.store.CreateBranch(r.Context(), projectID, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.writeError(w, err)
		return
	}
	branches, err := s.store.ListBranches(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, branches)
}

// maxUploadBytes caps in-memory multipart parsing; larger files spill to
// disk inside ParseMultipartForm.
const maxUploadBytes = 64 << 20

func (s *Server) handleUploadIFC(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid multipart form", types.ErrValidation))
		return
	}
	branchID, err := strconv.ParseInt(r.FormValue("branch_id"), 10, 64)
	if err != nil || branchID <= 0 {
		s.writeError(w, fmt.Errorf("%w: branch_id is required", types.ErrValidation))
		return
	}
	label := r.FormValue("label")

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: file field is required", types.ErrValidation))
		return
	}
	defer file.Close()

	// Stage under the uploaded filename so the revision records it.
	dir, err := os.MkdirTemp("", "bimatlas-upload-")
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: stage upload: %w", types.ErrStore, err))
		return
	}
	defer os.RemoveAll(dir)

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload.ifc"
	}
	staged := filepath.Join(dir, name)
	tmp, err := os.Create(staged)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: stage upload: %w", types.ErrStore, err))
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		s.writeError(w, fmt.Errorf("%w: stage upload: %w", types.ErrStore, err))
		return
	}
	tmp.Close()

	start := time.Now()
	result, err := s.store.Ingest(r.Context(), branchID, staged, label)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.RecordIngestion(r.Context(), result, time.Since(start))
	s.log.Info("upload ingested",
		zap.String("filename", header.Filename),
		zap.Int64("branch_id", branchID),
		zap.Int64("revision", result.RevisionID))
	s.writeJSON(w, http.StatusOK, result)
}

// productFilterFromQuery reads the shared filter parameters. ifc_class
// accepts a comma-separated list; substring filters are case-insensitive.
func productFilterFromQuery(r *http.Request) types.ProductFilter {
	q := r.URL.Query()
	filter := types.ProductFilter{
		ContainedIn: q.Get("contained_in"),
		GlobalID:    q.Get("global_id"),
		Name:        q.Get("name"),
		ObjectType:  q.Get("object_type"),
		Tag:         q.Get("tag"),
		Description: q.Get("description"),
	}
	if raw := q.Get("ifc_class"); raw != "" {
		for _, class := range strings.Split(raw, ",") {
			if class = strings.TrimSpace(class); class != "" {
				filter.IfcClasses = append(filter.IfcClasses, class)
			}
		}
	}
	return filter
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	rev, err := queryOptInt64(r, "revision")
	if err != nil {
		s.writeError(w, err)
		return
	}

	start := time.Now()
	products, resolved, err := s.query.Products(r.Context(), branchID, rev, productFilterFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.RecordQuery(r.Context(), "products", time.Since(start))

	dtos := make([]*productDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toProductDTO(p))
	}
	s.writeJSON(w, http.StatusOK, &productListDTO{
		BranchID: branchID,
		Revision: resolved,
		Total:    len(dtos),
		Products: dtos,
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	rev, err := queryOptInt64(r, "revision")
	if err != nil {
		s.writeError(w, err)
		return
	}
	globalID := muxVar(r, "global_id")

	detail, _, err := s.query.Product(r.Context(), branchID, globalID, rev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &productDetailDTO{
		productDTO: *toProductDTO(detail.Product),
		Relations:  detail.Relations,
	})
}

func (s *Server) handleSpatialTree(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	rev, err := queryOptInt64(r, "revision")
	if err != nil {
		s.writeError(w, err)
		return
	}

	start := time.Now()
	roots, resolved, err := s.query.SpatialTree(r.Context(), branchID, rev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.RecordQuery(r.Context(), "spatial_tree", time.Since(start))
	s.writeJSON(w, http.StatusOK, &spatialTreeDTO{
		BranchID: branchID,
		Revision: resolved,
		Roots:    roots,
	})
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	revisions, err := s.query.Revisions(r.Context(), branchID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, revisions)
}

func (s *Server) handleRevisionDiff(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	fromRev, err := queryInt64(r, "from_revision")
	if err != nil {
		s.writeError(w, err)
		return
	}
	toRev, err := queryInt64(r, "to_revision")
	if err != nil {
		s.writeError(w, err)
		return
	}

	start := time.Now()
	diff, err := s.query.RevisionDiff(r.Context(), branchID, fromRev, toRev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.RecordQuery(r.Context(), "revision_diff", time.Since(start))
	s.writeJSON(w, http.StatusOK, diff)
}
