package web

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/logging"
)

// handleCreateDataset records a dataset request and queues its generation.
// The response is sent before any row exists; poll the status endpoint or
// the listing until processed is true.
func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var in core.DatasetInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	ds, err := s.service.CreateDataset(r.Context(), currentUser(r).ID, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ds)
}

// handleListDatasets returns a page of the user's datasets, newest first.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListDatasets(r.Context(), currentUser(r).ID, parsePage(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDatasetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.DatasetStatus(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDataset(r.Context(), currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDownloadDataset streams a generated file as a CSV attachment.
// Uses chunked transfer encoding; each chunk is flushed as it is encoded.
func (s *Server) handleDownloadDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stream, err := s.service.OpenDataset(r.Context(), currentUser(r).ID, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, stream.Filename()))
	w.WriteHeader(http.StatusOK)

	fw := flushWriter{w: w, rc: http.NewResponseController(w)}
	if _, err := stream.WriteTo(fw); err != nil {
		// Can't change status code after writing, just log
		if r.Context().Err() == nil {
			logging.FromContext(r.Context()).Error("dataset download interrupted",
				"dataset_id", id,
				"rows_sent", stream.Rows(),
				"error", err,
			)
		}
		return
	}

	logging.FromContext(r.Context()).Debug("dataset downloaded", "dataset_id", id, "rows", stream.Rows())
}

// flushWriter flushes through any middleware wrappers that implement Unwrap.
type flushWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func (f flushWriter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f flushWriter) Flush() {
	_ = f.rc.Flush()
}
