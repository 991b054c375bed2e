// Package server exposes relations and plan execution over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/exec"
	"github.com/guileen/memquery/expr"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/plan"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 20

// RelationStore is the storage the handler serves; *store.Store implements it.
type RelationStore interface {
	exec.Source
	exec.SchemaLookup
	Save(ctx context.Context, rel *exec.Relation) error
	Load(ctx context.Context, name string) (*exec.Relation, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
}

type Handler struct {
	store    RelationStore
	compiler *expr.Compiler
	registry *algebra.AggregationRegistry
	opts     exec.Options
}

func NewHandler(store RelationStore, compiler *expr.Compiler, opts exec.Options) *Handler {
	return &Handler{store: store, compiler: compiler, opts: opts}
}

// WithRegistry resolves plan aggregations against reg.
func (h *Handler) WithRegistry(reg *algebra.AggregationRegistry) *Handler {
	h.registry = reg
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/relations", func(r chi.Router) {
		r.Get("/", h.ListRelations)
		r.Get("/{name}", h.GetRelation)
		r.Put("/{name}", h.PutRelation)
		r.Delete("/{name}", h.DeleteRelation)
	})
	r.Post("/api/query", h.Query)
	r.Post("/api/explain", h.Explain)
}

// QueryRequest is the body of /api/query and /api/explain. Relations are
// visible to the plan only, shadowing stored relations of the same name.
type QueryRequest struct {
	Plan      json.RawMessage `json:"plan"`
	Relations []exec.Document `json:"relations,omitempty"`
}

type QueryResponse struct {
	QueryID string        `json:"query_id"`
	Result  exec.Document `json:"result"`
	Count   int           `json:"count"`
}

type ExplainResponse struct {
	Plan string `json:"plan"`
}

type ListResponse struct {
	Relations []string `json:"relations"`
}

type PutResponse struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *Handler) ListRelations(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Relations: names})
}

func (h *Handler) GetRelation(w http.ResponseWriter, r *http.Request) {
	rel, err := h.store.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel.Document())
}

func (h *Handler) PutRelation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	doc, err := readDocument(r)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	if doc.Name != "" && doc.Name != name {
		writeError(w, r, badRequest(fmt.Errorf("document names relation %q, url names %q", doc.Name, name)))
		return
	}
	doc.Name = name
	rel, err := exec.FromDocument(doc)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	if err := h.store.Save(r.Context(), rel); err != nil {
		writeError(w, r, err)
		return
	}
	logger.InfoContext(r.Context(), "relation stored",
		logger.Component("server"),
		logger.String("relation", name),
		logger.Int("rows", rel.Len()),
	)
	writeJSON(w, http.StatusOK, PutResponse{Name: name, Rows: rel.Len()})
}

func (h *Handler) DeleteRelation(w http.ResponseWriter, r *http.Request) {
	found, err := h.store.Delete(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, notFound(fmt.Errorf("relation %q does not exist", chi.URLParam(r, "name"))))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	queryID := uuid.NewString()
	ctx := logger.WithQueryID(r.Context(), queryID)
	w.Header().Set("X-Query-ID", queryID)

	tree, source, err := h.prepare(ctx, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := exec.NewExecutor(source, h.opts).Execute(ctx, tree)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{QueryID: queryID, Result: out.Document(), Count: out.Len()})
}

func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	tree, _, err := h.prepare(r.Context(), r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExplainResponse{Plan: algebra.Explain(tree)})
}

// prepare decodes a QueryRequest and builds its plan against the stored
// relations overlaid with the inline ones.
func (h *Handler) prepare(_ context.Context, r *http.Request) (algebra.RelationalExpression, *overlay, error) {
	var req QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return nil, nil, badRequest(fmt.Errorf("decode request: %w", err))
	}
	if len(req.Plan) == 0 {
		return nil, nil, badRequest(fmt.Errorf("request has no plan"))
	}

	source := newOverlay(h.store)
	for _, doc := range req.Relations {
		rel, err := exec.FromDocument(doc)
		if err != nil {
			return nil, nil, badRequest(fmt.Errorf("relation %q: %w", doc.Name, err))
		}
		source.inline.Register(rel)
	}

	node, err := plan.Decode(req.Plan)
	if err != nil {
		return nil, nil, err
	}
	b := &plan.Builder{Schemas: source, Compiler: h.compiler, Registry: h.registry}
	tree, err := b.Build(node)
	if err != nil {
		return nil, nil, err
	}
	return tree, source, nil
}

func readDocument(r *http.Request) (exec.Document, error) {
	var doc exec.Document
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return exec.Document{}, fmt.Errorf("decode relation document: %w", err)
	}
	return doc, nil
}
