package web

import (
	"net/http"

	"github.com/JonMunkholm/dummycsv/internal/core"
)

// handleColumnTypes lists the column types a schema may use.
func (s *Server) handleColumnTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ColumnTypes())
}

// handleCreateSchema creates a schema together with its columns.
func (s *Server) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var in core.SchemaInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	schema, err := s.service.CreateSchema(r.Context(), currentUser(r).ID, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, schema)
}

// handleListSchemas returns a page of the user's schemas, newest first.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListSchemas(r.Context(), currentUser(r).ID, parsePage(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id", core.ErrSchemaNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	schema, err := s.service.GetSchema(r.Context(), currentUser(r).ID, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// handleUpdateSchema changes schema metadata. PUT requires the title,
// PATCH changes only the fields sent.
func (s *Server) handleUpdateSchema(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id", core.ErrSchemaNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var upd core.SchemaUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		s.respondError(w, r, err)
		return
	}

	full := r.Method == http.MethodPut
	schema, err := s.service.UpdateSchema(r.Context(), currentUser(r).ID, id, upd, full)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// handleDeleteSchema removes a schema and every dataset made from it.
func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id", core.ErrSchemaNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.DeleteSchema(r.Context(), currentUser(r).ID, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	schemaID, err := idParam(r, "id", core.ErrSchemaNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var in core.ColumnInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	col, err := s.service.AddColumn(r.Context(), currentUser(r).ID, schemaID, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	schemaID, err := idParam(r, "id", core.ErrSchemaNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	columnID, err := idParam(r, "cid", core.ErrColumnNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var in core.ColumnInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	col, err := s.service.UpdateColumn(r.Context(), currentUser(r).ID, schemaID, columnID, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, col)
}

// handleDeleteColumn removes a column. The last column of a schema stays.
func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	schemaID, err := idParam(r, "id", core.ErrSchemaNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	columnID, err := idParam(r, "cid", core.ErrColumnNotFound)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.DeleteColumn(r.Context(), currentUser(r).ID, schemaID, columnID); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
