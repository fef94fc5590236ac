// Package api exposes the web surface: HTML views for listing, uploading
// and chatting with documents, JSON endpoints for queries, summaries and
// entities, and an MCP server over the same pipelines.
package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paperchat/paperchat/internal/pipeline"
	"github.com/paperchat/paperchat/internal/storage"
)

const maxUploadSize = 32 << 20 // 32MB

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Ingestor runs the ingestion pipeline for a stored document.
type Ingestor interface {
	Ingest(ctx context.Context, documentID string) error
}

// Answerer answers a question about a processed document.
type Answerer interface {
	Answer(ctx context.Context, documentID, query string) (string, error)
}

// Deps holds the collaborators the HTTP handlers need.
type Deps struct {
	Store     *storage.Store
	Ingestor  Ingestor
	Answerer  Answerer
	UploadDir string
	Logger    *slog.Logger
}

// NewHandler returns the application's HTTP handler.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Get("/", handleList(deps))
	r.Get("/list/", handleList(deps))
	r.Get("/upload/", handleUploadForm)
	r.Post("/upload/", handleUpload(deps))
	r.Get("/query/{id}/", handleChatView(deps))
	r.Post("/query/{id}/", handleQuery(deps))
	r.Get("/summary/{id}/", handleSummary(deps))
	r.Get("/entities/{id}/", handleEntities(deps))

	return r
}

func handleList(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Store.ListProcessedDocuments()
		if err != nil {
			http.Error(w, fmt.Sprintf("Error listing documents: %v", err), http.StatusInternalServerError)
			return
		}
		render(w, deps.Logger, "list.html", map[string]any{"Documents": docs})
	}
}

func handleUploadForm(w http.ResponseWriter, r *http.Request) {
	render(w, slog.Default(), "upload.html", nil)
}

// handleUpload stores the uploaded file under the upload directory, creates
// the document row and runs ingestion synchronously. The response redirects
// to the chat view only after the document is fully processed.
func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		file, header, err := r.FormFile("pdf_file")
		if err != nil {
			http.Error(w, "No PDF file provided.", http.StatusBadRequest)
			return
		}
		defer file.Close()

		docID := uuid.New().String()
		path, err := saveUpload(deps.UploadDir, docID, file)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error processing PDF: %v", err), http.StatusInternalServerError)
			return
		}

		doc := storage.Document{
			ID:       docID,
			Filename: filepath.Base(header.Filename),
			Path:     path,
		}
		if err := deps.Store.CreateDocument(doc); err != nil {
			http.Error(w, fmt.Sprintf("Error processing PDF: %v", err), http.StatusInternalServerError)
			return
		}

		if err := deps.Ingestor.Ingest(r.Context(), docID); err != nil {
			deps.Logger.Error("ingestion failed", "document_id", docID, "error", err)
			http.Error(w, fmt.Sprintf("Error processing PDF: %v", err), http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/query/"+docID+"/", http.StatusFound)
	}
}

func saveUpload(dir, docID string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	path := filepath.Join(dir, docID+".pdf")
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	return path, nil
}

func handleChatView(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "PDF not found.", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("Error loading PDF: %v", err), http.StatusInternalServerError)
			return
		}
		if !doc.Processed {
			http.Error(w, "PDF not processed yet.", http.StatusBadRequest)
			return
		}

		entities, err := deps.Store.ListEntities(id)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error loading PDF: %v", err), http.StatusInternalServerError)
			return
		}
		turns, err := deps.Store.ListTurns(id)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error loading PDF: %v", err), http.StatusInternalServerError)
			return
		}

		render(w, deps.Logger, "query.html", map[string]any{
			"Document": doc,
			"Entities": entities,
			"Turns":    turns,
		})
	}
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
			http.Error(w, "No query provided.", http.StatusBadRequest)
			return
		}

		answer, err := deps.Answerer.Answer(r.Context(), id, req.Query)
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "PDF not found.", http.StatusNotFound)
			return
		case errors.Is(err, pipeline.ErrNotReady):
			http.Error(w, "PDF not processed yet.", http.StatusBadRequest)
			return
		case errors.Is(err, pipeline.ErrEmptyQuery):
			http.Error(w, "No query provided.", http.StatusBadRequest)
			return
		default:
			deps.Logger.Error("query failed", "document_id", id, "error", err)
			http.Error(w, fmt.Sprintf("Error querying PDF: %v", err), http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]string{"answer": answer})
	}
}

func handleSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "PDF not found.", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("Error loading PDF: %v", err), http.StatusInternalServerError)
			return
		}

		var summary *string
		if doc.Summary != "" {
			summary = &doc.Summary
		}
		writeJSON(w, map[string]any{"summary": summary})
	}
}

func handleEntities(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetDocument(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "PDF not found.", http.StatusNotFound)
				return
			}
			http.Error(w, fmt.Sprintf("Error loading PDF: %v", err), http.StatusInternalServerError)
			return
		}

		entities, err := deps.Store.ListEntities(id)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error loading PDF: %v", err), http.StatusInternalServerError)
			return
		}

		type entityResult struct {
			Type  string `json:"type"`
			Text  string `json:"text"`
			Count int    `json:"count"`
		}
		results := make([]entityResult, len(entities))
		for i, e := range entities {
			results[i] = entityResult{Type: e.Type, Text: e.Text, Count: e.Count}
		}
		writeJSON(w, map[string]any{"entities": results})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func render(w http.ResponseWriter, logger *slog.Logger, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("rendering template", "template", name, "error", err)
	}
}
