package http

import (
	"net/http"
	"strings"
)

// RouterConfig lists the handlers and middleware composing the API surface.
type RouterConfig struct {
	Auth        *AuthHandler
	Members     *MemberHandler
	Series      *SeriesHandler
	Occurrences *OccurrenceHandler
	Reminders   *ReminderHandler
	Calendar    *CalendarHandler
	Middleware  []func(http.Handler) http.Handler
}

// NewRouter assembles the HTTP handler tree.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		})
	}

	if cfg.Members != nil {
		mux.HandleFunc("/members", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Members.List(w, r)
			case http.MethodPost:
				cfg.Members.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
	}

	if cfg.Series != nil {
		mux.HandleFunc("/series", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Series.Create(w, r)
		})
		mux.HandleFunc("/series/preview", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Series.Preview(w, r)
		})
		mux.HandleFunc("/series/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/series/")
			if id == "" || id == "preview" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithSeriesID(r.Context(), id)
			r = r.WithContext(ctx)
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Series.Get(w, r)
		})
	}

	if cfg.Occurrences != nil {
		mux.HandleFunc("/occurrences", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Occurrences.List(w, r)
		})
		mux.HandleFunc("/occurrences/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/occurrences/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithOccurrenceID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Occurrences.Get(w, r)
			case http.MethodPut:
				cfg.Occurrences.Update(w, r)
			case http.MethodDelete:
				cfg.Occurrences.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Reminders != nil {
		mux.HandleFunc("/reminders", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			cfg.Reminders.Upsert(w, r)
		})
		mux.HandleFunc("/reminders/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/reminders/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithReminderID(r.Context(), id)
			r = r.WithContext(ctx)
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Reminders.Delete(w, r)
		})
	}

	if cfg.Calendar != nil {
		mux.HandleFunc("/calendar.ics", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Calendar.Feed(w, r)
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
