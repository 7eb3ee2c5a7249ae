package handler

import (
	"log/slog"
	"net/http"
	"sort"
)

// ActionRouter dispatches form posts to a handler chosen by one form field,
// the way admin-post and admin-ajax dispatch on "action".
type ActionRouter struct {
	field   string
	actions map[string]http.HandlerFunc
	logger  *slog.Logger
}

// NewActionRouter creates a router keyed on the named form field.
func NewActionRouter(field string, logger *slog.Logger) *ActionRouter {
	return &ActionRouter{
		field:   field,
		actions: make(map[string]http.HandlerFunc),
		logger:  logger,
	}
}

// Handle registers fn for action. Registering an action twice replaces it.
func (a *ActionRouter) Handle(action string, fn http.HandlerFunc) {
	a.actions[action] = fn
}

// Actions lists the registered action names in sorted order.
func (a *ActionRouter) Actions() []string {
	names := make([]string, 0, len(a.actions))
	for name := range a.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeHTTP parses the form and calls the registered action.
// Handlers read submitted values from r.PostForm.
func (a *ActionRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	action := r.PostForm.Get(a.field)
	fn, ok := a.actions[action]
	if !ok {
		a.logger.WarnContext(r.Context(), "unknown action",
			slog.String("field", a.field),
			slog.String("action", action),
		)
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	fn(w, r)
}
