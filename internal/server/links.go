package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"linkshare/internal/store"
	"linkshare/pkg/templates"

	"github.com/go-chi/chi/v5"
)

type indexPage struct {
	Links []store.Link
}

type addPage struct {
	Name string
	URL  string
}

// HandleIndex lists all links, most recent first
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Store.Session(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to open store session", err)
		return
	}
	defer sess.Close()

	links, err := sess.List(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to list links", err)
		return
	}

	s.render(w, r, templates.Index, indexPage{Links: links})
}

// HandleAddForm renders the empty add form
func (s *Server) HandleAddForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, templates.Add, addPage{})
}

// HandleAdd stores a link when both fields are present. Incomplete
// submissions re-render the form without writing anything.
func (s *Server) HandleAdd(w http.ResponseWriter, r *http.Request) {
	link := store.Link{
		Name: r.PostFormValue("name"),
		URL:  r.PostFormValue("url"),
	}

	if !link.Complete() {
		s.Metrics.link("add_ignored")
		s.render(w, r, templates.Add, addPage{Name: link.Name, URL: link.URL})
		return
	}

	sess, err := s.Store.Session(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to open store session", err)
		return
	}
	defer sess.Close()

	id, err := sess.Add(r.Context(), link.Name, link.URL)
	if err != nil {
		s.serverError(w, r, "Failed to add link", err)
		return
	}

	s.Metrics.link("add")
	s.Logger.Info("Link added", "id", id, "name", link.Name)

	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleDelete removes a link by id. It answers 204 whether or not the id existed.
func (s *Server) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		// Digits only reach here, so this is an out-of-range id
		http.NotFound(w, r)
		return
	}

	sess, err := s.Store.Session(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to open store session", err)
		return
	}
	defer sess.Close()

	n, err := sess.Delete(r.Context(), id)
	if err != nil {
		s.serverError(w, r, "Failed to delete link", err)
		return
	}

	s.Metrics.link("delete")
	s.Logger.Info("Link deleted", "id", id, "existed", n > 0)

	w.WriteHeader(http.StatusNoContent)
}

// HandleDashboard renders the static dashboard
func (s *Server) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, templates.Dashboard, nil)
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// render writes a full HTML page with status 200
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.Templates.Render(&buf, name, data); err != nil {
		s.serverError(w, r, "Failed to render template", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.Logger.Error("Failed to write response", "error", err, "template", name)
	}
}

// serverError logs err and answers with a bare 500
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.Logger.Error(msg, "error", err, "method", r.Method, "path", r.URL.Path)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
