package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-source-portal/auth"
	"github.com/jrsteele09/go-source-portal/users"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// PageData is the model every page template receives
type PageData struct {
	AppName    string
	Title      string
	ActivePage string
	User       *users.User
	Error      string
	Notice     string
	FieldError map[string]string
	Form       map[string]string
	Content    any
}

// newPageData fills the fields every page shares: flash messages from the
// query string and the user of an authorized session
func (s *Server) newPageData(r *http.Request, title, activePage string) PageData {
	data := PageData{
		AppName:    s.config.GetAppName(),
		Title:      title,
		ActivePage: activePage,
		Error:      r.URL.Query().Get("error"),
		Notice:     r.URL.Query().Get("notice"),
		FieldError: map[string]string{},
		Form:       map[string]string{},
	}
	if sess, ok := sessionFromContext(r.Context()); ok {
		data.User = sess.User
	}
	return data
}

// withError puts err onto the page, on its field when it is a validation error
func (d *PageData) withError(err error) {
	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) && validationErr.Field != "" {
		d.FieldError[validationErr.Field] = validationErr.Message
	}
	d.Error = auth.UserMessage(err)
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data PageData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	body, err := s.pages.render(page, data)
	if err != nil {
		log.Err(err).Str("page", page).Msg("Failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// formValues trims the named form fields for re-display
func formValues(r *http.Request, names ...string) map[string]string {
	values := make(map[string]string, len(names))
	for _, name := range names {
		values[name] = strings.TrimSpace(r.FormValue(name))
	}
	return values
}

// HealthHandler reports liveness for load balancers
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"app":    s.config.GetAppName(),
		})
	}
}

// NotFoundHandler renders the portal 404 page
func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, "Page not found", "")
		s.render(w, http.StatusNotFound, "not_found.html", data)
	}
}
