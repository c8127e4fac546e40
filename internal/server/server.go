package server

import (
	"bytes"
	"database/sql"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/pkg/resultcache"
	"github.com/PhucNguyen204/scenefilter/pkg/schema"
	"github.com/PhucNguyen204/scenefilter/pkg/service"
)

const maxBodyBytes = 8 << 20

type AppServer struct {
	db      *sql.DB
	schema  *schema.Schema
	filters *service.Service[schema.Document]
	log     logrus.FieldLogger
}

// NewFilterService builds a document filter service over sch. Cached fields
// share a Postgres table when db is set and process memory otherwise.
func NewFilterService(sch *schema.Schema, db *sql.DB, cfg engine.EngineConfig, log logrus.FieldLogger) (*service.Service[schema.Document], error) {
	var cache engine.ResultCache = resultcache.NewMemory()
	if db != nil {
		cache = resultcache.NewPostgres(db, resultcache.DefaultTable)
	}
	fields, err := sch.SceneFields(cache)
	if err != nil {
		return nil, err
	}
	return service.New(fields,
		service.WithConfig[schema.Document](cfg),
		service.WithLogger[schema.Document](log),
		service.WithIdentity(schema.Identity),
		service.WithDocument[schema.Document](schema.Raw),
	)
}

func NewAppServer(db *sql.DB, sch *schema.Schema, filters *service.Service[schema.Document], log logrus.FieldLogger) *AppServer {
	return &AppServer{db: db, schema: sch, filters: filters, log: log}
}

// RegisterRoutes wires HTTP handlers.
func (s *AppServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/schema", s.handleSchema)
	mux.HandleFunc("/api/v1/match", s.handleMatch)
	mux.HandleFunc("/api/v1/filter", s.handleFilter)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
}

func (s *AppServer) Router() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// ---- Handlers ----

func (s *AppServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeErr(w, http.StatusServiceUnavailable, errors.Wrap(err, "database"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *AppServer) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, s.filters.Describe())
}

type matchRequest struct {
	Filter   json.RawMessage `json:"filter"`
	Document json.RawMessage `json:"document"`
}

type matchResponse struct {
	Status      string   `json:"status"`
	Matched     bool     `json:"matched"`
	Message     string   `json:"message,omitempty"`
	FailurePath []string `json:"failure_path,omitempty"`
}

func (s *AppServer) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req matchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	doc, err := s.schema.Document(req.Document)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	filter, err := filterText(req.Filter)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	res := s.filters.Match(r.Context(), filter, doc)
	resp := matchResponse{Status: res.Status.String(), Matched: res.OK()}
	if res.Failure != nil {
		resp.Message = res.Failure.Message
		resp.FailurePath = res.FailurePath()
	}
	code := http.StatusOK
	if res.Status == engine.StatusInvalid {
		code = http.StatusBadRequest
	}
	s.log.WithFields(logrus.Fields{"document": doc.ID, "status": resp.Status}).Debug("match")
	writeJSON(w, code, resp)
}

type filterRequest struct {
	Filter    json.RawMessage   `json:"filter"`
	Documents []json.RawMessage `json:"documents"`
}

func (s *AppServer) handleFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req filterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	filter, err := filterText(req.Filter)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	docs := make([]schema.Document, 0, len(req.Documents))
	for i, raw := range req.Documents {
		d, err := s.schema.Document(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, errors.Wrapf(err, "document %d", i))
			return
		}
		docs = append(docs, d)
	}
	if _, err := s.filters.Compile(filter); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	matched := make([]int, 0, len(docs))
	for i, d := range docs {
		if s.filters.Check(r.Context(), filter, d) == nil {
			matched = append(matched, i)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matched": matched, "count": len(matched)})
}

func (s *AppServer) handleStats(w http.ResponseWriter, r *http.Request) {
	type statsResp struct {
		Evaluation      any `json:"evaluation"`
		CompiledFilters int `json:"compiled_filters"`
		FieldCount      int `json:"field_count"`
	}
	writeJSON(w, http.StatusOK, statsResp{
		Evaluation:      s.filters.Stats(),
		CompiledFilters: s.filters.CompiledCount(),
		FieldCount:      s.filters.Registry().Len(),
	})
}

// ---- Helpers ----

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid JSON")
	}
	return nil
}

// filterText accepts the filter either as a JSON string or inline JSON.
func filterText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] != '"' {
		return string(trimmed), nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return "", errors.Wrap(err, "filter")
	}
	return text, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("writeJSON failed")
	}
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
