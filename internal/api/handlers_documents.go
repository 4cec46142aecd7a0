package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/studydeck/internal/parser"
	"github.com/dgallion1/studydeck/internal/pipeline"
	"github.com/dgallion1/studydeck/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleUploadDocument accepts a file (type=pdf|file, field "document") or a
// video link (type=youtube, field "url") and queues it for ingestion.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	book, ok := s.book(w, r)
	if !ok {
		return
	}

	kind := strings.ToLower(strings.TrimSpace(r.FormValue("type")))
	title := strings.TrimSpace(r.FormValue("title"))

	var (
		source string
		data   []byte
	)
	switch kind {
	case store.KindYouTube:
		source = strings.TrimSpace(r.FormValue("url"))
		if _, err := parser.VideoID(source); err != nil {
			jsonError(w, "invalid youtube url: "+err.Error(), http.StatusBadRequest)
			return
		}
	case store.KindPDF, store.KindFile:
		var status int
		var err error
		source, data, status, err = s.readUpload(r, kind)
		if err != nil {
			jsonError(w, err.Error(), status)
			return
		}
	default:
		jsonError(w, "type must be one of pdf, file, youtube", http.StatusBadRequest)
		return
	}
	if title == "" {
		title = source
	}

	ctx := r.Context()
	doc, err := s.store.CreateDocument(ctx, store.Document{
		BookID: book.ID,
		Title:  title,
		Kind:   kind,
		Source: source,
	})
	if err != nil {
		s.storeError(w, err, "document")
		return
	}

	job := pipeline.NewJob(pipeline.KindIngest, book.ID)
	job.DocumentID = doc.ID
	job.SourceKind = kind
	job.Source = source
	job.SetFileData(data)

	if err := s.orchestrator.Submit(job); err != nil {
		if mErr := s.store.MarkDocumentFailed(ctx, doc.ID, err.Error()); mErr != nil {
			s.log.Warn("mark rejected document failed", "document_id", doc.ID, "error", mErr)
		}
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"document_id": doc.ID,
		"status":      pipeline.StatusQueued,
		"poll_url":    fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

// readUpload returns the sanitized filename and bytes of the "document"
// form file, or an error with the status code to report.
func (s *Server) readUpload(r *http.Request, kind string) (string, []byte, int, error) {
	file, header, err := r.FormFile("document")
	if err != nil {
		return "", nil, http.StatusBadRequest, fmt.Errorf("document is required: %w", err)
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if kind == store.KindPDF && ext != ".pdf" {
		return "", nil, http.StatusBadRequest, fmt.Errorf("type pdf requires a .pdf file, got %q", ext)
	}
	if !parser.IsSupportedExtension(filename) {
		return "", nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", ext)
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", nil, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	if len(data) == 0 {
		return "", nil, http.StatusBadRequest, fmt.Errorf("document is empty")
	}
	return filename, data, http.StatusOK, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	book, ok := s.book(w, r)
	if !ok {
		return
	}
	docs, err := s.store.ListDocuments(r.Context(), book.ID)
	if err != nil {
		s.storeError(w, err, "documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": nonNil(docs)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.storeError(w, err, "document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument removes a document, its blocks and its vectors.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := s.store.GetDocument(ctx, chi.URLParam(r, "docID"))
	if err != nil {
		s.storeError(w, err, "document")
		return
	}
	if doc.Processing {
		jsonError(w, "document is still processing", http.StatusConflict)
		return
	}

	if err := s.vectors.DeleteDocument(ctx, doc.ID); err != nil {
		s.log.Error("delete vectors", "document_id", doc.ID, "error", err)
		jsonError(w, "failed to delete document vectors", http.StatusInternalServerError)
		return
	}
	if err := s.store.DeleteDocument(ctx, doc.ID); err != nil {
		s.storeError(w, err, "document")
		return
	}
	s.invalidate(r, doc.BookID)

	s.log.Info("document deleted", "document_id", doc.ID, "book_id", doc.BookID, "blocks", doc.BlockCount)
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":    doc.ID,
		"blocks_deleted": doc.BlockCount,
	})
}

func (s *Server) invalidate(r *http.Request, bookID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBook(r.Context(), bookID); err != nil {
		s.log.Warn("invalidate answer cache", "book_id", bookID, "error", err)
	}
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
