package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"grid-tools/internal/editor"
	"grid-tools/internal/grid"
	"grid-tools/internal/schema"
	"grid-tools/internal/store"
)

// Configure jsoniter for standard library compatibility.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIResponse defines the base structure for administrative JSON
// responses. Grid and editor endpoints reply with their protocol
// bodies instead, because the widget consumes them at the top level.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// SendJSONResponse is a helper function to send any JSON response.
func SendJSONResponse(w http.ResponseWriter, success bool, message string, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	resp := APIResponse{
		Success: success,
		Message: message,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// sendRawJSON writes a protocol body without the APIResponse wrapper.
func sendRawJSON(w http.ResponseWriter, body any, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Handlers struct groups our API handlers.
type Handlers struct {
	Store   *store.Manager
	Schemas map[string]*schema.FieldSchema
	Grid    grid.Options
}

// NewHandlers creates a new instance of Handlers. The schema map keys
// are collection names; collections without an entry run schemaless.
func NewHandlers(m *store.Manager, schemas map[string]*schema.FieldSchema, gridOpts grid.Options) *Handlers {
	if schemas == nil {
		schemas = make(map[string]*schema.FieldSchema)
	}
	return &Handlers{
		Store:   m,
		Schemas: schemas,
		Grid:    gridOpts,
	}
}

// collectionFromPath extracts the collection name following the given
// route prefix, ignoring anything after a further slash.
func collectionFromPath(r *http.Request, prefix string) string {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		path = path[:idx]
	}
	return path
}

// TableHandler handles POST /tables/{collectionName}: one server-side
// grid request in, one response envelope out. The envelope is always
// 200 with zero rows on backend trouble, so a transient failure shows
// the user an empty page rather than a broken widget.
func (h *Handlers) TableHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collectionName := collectionFromPath(r, "/tables/")
	select {
	case <-ctx.Done():
		log.Printf("Request /tables/%s cancelled or timed out: %v", collectionName, ctx.Err())
		SendJSONResponse(w, false, "Request cancelled or timed out", nil, http.StatusServiceUnavailable)
		return
	default:
	}

	if r.Method != http.MethodPost {
		SendJSONResponse(w, false, "Method not allowed", nil, http.StatusMethodNotAllowed)
		return
	}
	if collectionName == "" {
		SendJSONResponse(w, false, "Collection name cannot be empty", nil, http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1*1024*1024)
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Bad request for table '%s': invalid JSON body: %v", collectionName, err)
		SendJSONResponse(w, false, "Invalid JSON request body", nil, http.StatusBadRequest)
		return
	}

	col := h.Store.Collection(collectionName)
	processor := grid.New(col, h.Schemas[collectionName], h.Grid)
	sendRawJSON(w, processor.Rows(req), http.StatusOK)
}

// EditorHandler handles POST /editor/{collectionName}?id=...: one
// create, edit or remove payload. The row-id list travels in the id
// query parameter, comma separated.
func (h *Handlers) EditorHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collectionName := collectionFromPath(r, "/editor/")
	select {
	case <-ctx.Done():
		log.Printf("Request /editor/%s cancelled or timed out: %v", collectionName, ctx.Err())
		SendJSONResponse(w, false, "Request cancelled or timed out", nil, http.StatusServiceUnavailable)
		return
	default:
	}

	if r.Method != http.MethodPost {
		SendJSONResponse(w, false, "Method not allowed", nil, http.StatusMethodNotAllowed)
		return
	}
	if collectionName == "" {
		SendJSONResponse(w, false, "Collection name cannot be empty", nil, http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 10*1024*1024)
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("Bad request for editor '%s': invalid JSON body: %v", collectionName, err)
		SendJSONResponse(w, false, "Invalid JSON request body", nil, http.StatusBadRequest)
		return
	}

	col := h.Store.Collection(collectionName)
	processor := editor.New(col, h.Schemas[collectionName])
	body, err := processor.Apply(payload, r.URL.Query().Get("id"))
	if err != nil {
		log.Printf("Bad request for editor '%s': %v", collectionName, err)
		SendJSONResponse(w, false, err.Error(), nil, http.StatusBadRequest)
		return
	}
	sendRawJSON(w, body, http.StatusOK)
}

// SeedDocumentsHandler handles POST /collections/{collectionName}/documents.
// The body is a JSON array of documents; each is inserted as one row.
func (h *Handlers) SeedDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collectionName := collectionFromPath(r, "/collections/")
	select {
	case <-ctx.Done():
		log.Printf("Request /collections/%s/documents cancelled: %v", collectionName, ctx.Err())
		SendJSONResponse(w, false, "Request cancelled or timed out", nil, http.StatusServiceUnavailable)
		return
	default:
	}

	if r.Method != http.MethodPost {
		SendJSONResponse(w, false, "Method not allowed", nil, http.StatusMethodNotAllowed)
		return
	}
	if collectionName == "" {
		SendJSONResponse(w, false, "Collection name cannot be empty", nil, http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 50*1024*1024)
	var docs []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		log.Printf("Bad request for collection '%s': body must be a JSON array of documents: %v", collectionName, err)
		SendJSONResponse(w, false, "Body must be a JSON array of documents", nil, http.StatusBadRequest)
		return
	}

	col := h.Store.Collection(collectionName)
	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		id, err := col.Insert(doc)
		if err != nil {
			log.Printf("Insert into collection '%s' failed at document %d: %v", collectionName, i, err)
			SendJSONResponse(w, false, fmt.Sprintf("Insert failed at document %d: %v", i, err), nil, http.StatusInternalServerError)
			return
		}
		ids = append(ids, id)
	}
	SendJSONResponse(w, true, fmt.Sprintf("Inserted %d documents into collection '%s'", len(ids), collectionName), ids, http.StatusCreated)
}

// ListCollectionsHandler handles GET /collections.
func (h *Handlers) ListCollectionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	select {
	case <-ctx.Done():
		log.Printf("Request /collections cancelled: %v", ctx.Err())
		SendJSONResponse(w, false, "Request cancelled or timed out", nil, http.StatusServiceUnavailable)
		return
	default:
	}

	if r.Method != http.MethodGet {
		SendJSONResponse(w, false, "Method not allowed", nil, http.StatusMethodNotAllowed)
		return
	}

	SendJSONResponse(w, true, "Collections retrieved successfully", h.Store.List(), http.StatusOK)
}

// CreateIndexRequest is the body of POST /collections/{name}/indexes.
type CreateIndexRequest struct {
	Field string `json:"field"`
}

// CreateIndexHandler handles POST /collections/{collectionName}/indexes,
// creating a field index and backfilling it from existing documents.
func (h *Handlers) CreateIndexHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collectionName := collectionFromPath(r, "/collections/")
	select {
	case <-ctx.Done():
		log.Printf("Request /collections/%s/indexes cancelled: %v", collectionName, ctx.Err())
		SendJSONResponse(w, false, "Request cancelled or timed out", nil, http.StatusServiceUnavailable)
		return
	default:
	}

	if r.Method != http.MethodPost {
		SendJSONResponse(w, false, "Method not allowed", nil, http.StatusMethodNotAllowed)
		return
	}
	if collectionName == "" {
		SendJSONResponse(w, false, "Collection name cannot be empty", nil, http.StatusBadRequest)
		return
	}

	var req CreateIndexRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Printf("Bad request for collection '%s': invalid JSON body or unknown fields: %v", collectionName, err)
		SendJSONResponse(w, false, "Invalid JSON request body or unknown fields", nil, http.StatusBadRequest)
		return
	}
	if req.Field == "" {
		SendJSONResponse(w, false, "Field cannot be empty", nil, http.StatusBadRequest)
		return
	}

	h.Store.Collection(collectionName).CreateIndex(req.Field)
	SendJSONResponse(w, true, fmt.Sprintf("Index on '%s' created for collection '%s'", req.Field, collectionName), nil, http.StatusCreated)
}

// TextIndexRequest is the body of POST /collections/{name}/text-index.
type TextIndexRequest struct {
	Fields []string `json:"fields"`
}

// TextIndexHandler handles POST /collections/{collectionName}/text-index,
// building or rebuilding the collection's full-text index.
func (h *Handlers) TextIndexHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collectionName := collectionFromPath(r, "/collections/")
	select {
	case <-ctx.Done():
		log.Printf("Request /collections/%s/text-index cancelled: %v", collectionName, ctx.Err())
		SendJSONResponse(w, false, "Request cancelled or timed out", nil, http.StatusServiceUnavailable)
		return
	default:
	}

	if r.Method != http.MethodPost {
		SendJSONResponse(w, false, "Method not allowed", nil, http.StatusMethodNotAllowed)
		return
	}
	if collectionName == "" {
		SendJSONResponse(w, false, "Collection name cannot be empty", nil, http.StatusBadRequest)
		return
	}

	var req TextIndexRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Printf("Bad request for collection '%s': invalid JSON body or unknown fields: %v", collectionName, err)
		SendJSONResponse(w, false, "Invalid JSON request body or unknown fields", nil, http.StatusBadRequest)
		return
	}
	if len(req.Fields) == 0 {
		SendJSONResponse(w, false, "Fields cannot be empty", nil, http.StatusBadRequest)
		return
	}

	h.Store.Collection(collectionName).EnsureTextIndex(req.Fields...)
	SendJSONResponse(w, true, fmt.Sprintf("Text index on %v created for collection '%s'", req.Fields, collectionName), nil, http.StatusCreated)
}

// LogRequest is a middleware for logging incoming HTTP requests.
func LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("Request: Method='%s', Path='%s', Duration='%s'", r.Method, r.URL.Path, time.Since(start))
	})
}
