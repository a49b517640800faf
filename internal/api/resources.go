package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/library-core/internal/audit"
	"github.com/nerrad567/library-core/internal/library"
)

// resource serves the CRUD endpoints of one entity kind.
type resource[E any] struct {
	s     *Server
	table library.Table[E]
	kind  *library.Kind[E]
}

// mountResource registers /{kind} and /{kind}/{id} routes for table.
func mountResource[E any](r chi.Router, s *Server, table library.Table[E]) {
	res := &resource[E]{s: s, table: table, kind: table.Kind()}

	r.Route("/"+res.kind.Name, func(r chi.Router) {
		r.Get("/", res.list)
		r.Post("/", res.create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", res.get)
			r.Patch("/", res.patch)
			r.Delete("/", res.delete)
		})
	})
}

// list returns every record, or those matching ?q=, in canonical order.
func (res *resource[E]) list(w http.ResponseWriter, r *http.Request) {
	items := res.table.Search(r.URL.Query().Get("q"))
	w.Header().Set(headerResultCount, strconv.Itoa(len(items)))

	if len(items) == 0 {
		switch res.s.emptyStatus {
		case http.StatusNoContent:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.StatusNotFound:
			writeNotFound(w, "no "+res.kind.Name+" found")
			return
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// get returns one record by primary key.
func (res *resource[E]) get(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathID(w, r)
	if !ok {
		return
	}
	item, err := res.table.Get(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// create validates the body and inserts a new record.
func (res *resource[E]) create(w http.ResponseWriter, r *http.Request) {
	p, ok := readPayload(w, r)
	if !ok {
		return
	}
	created, err := res.table.CreateFrom(r.Context(), p)
	if err != nil {
		res.s.logRejected(r, res.kind.Name, err)
		writeStoreError(w, err)
		return
	}

	id := res.kind.Key(created)
	w.Header().Set("Location", "/api/"+res.kind.Name+"/"+strconv.Itoa(id))
	res.s.recordAudit(r, string(library.ActionCreated), res.kind.Name, id, nil)
	writeJSON(w, http.StatusCreated, created)
}

// patch applies the recognised, non-empty fields of the body to a record.
func (res *resource[E]) patch(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathID(w, r)
	if !ok {
		return
	}
	p, ok := readPayload(w, r)
	if !ok {
		return
	}
	updated, err := res.table.Patch(r.Context(), id, p)
	if err != nil {
		res.s.logRejected(r, res.kind.Name, err)
		writeStoreError(w, err)
		return
	}

	var details map[string]any
	if d, err := res.kind.BuildDelta(p); err == nil {
		details = map[string]any{"fields": d.Fields()}
	}
	res.s.recordAudit(r, string(library.ActionUpdated), res.kind.Name, id, details)
	writeJSON(w, http.StatusOK, updated)
}

// delete removes a record. A second delete of the same key is a 404.
func (res *resource[E]) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathID(w, r)
	if !ok {
		return
	}
	if err := res.table.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	res.s.recordAudit(r, string(library.ActionDeleted), res.kind.Name, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} URL parameter, writing a 400 when it is not a
// positive integer.
func (res *resource[E]) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := library.ParseID(res.kind.KeyField, chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return 0, false
	}
	return id, true
}

// readPayload reads the request body as a JSON object.
func readPayload(w http.ResponseWriter, r *http.Request) (library.Payload, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
			return nil, false
		}
		writeBadRequest(w, "reading request body failed")
		return nil, false
	}
	p, err := library.ParsePayload(body)
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	return p, true
}

// logRejected logs a refused mutation at debug level.
func (s *Server) logRejected(r *http.Request, kind string, err error) {
	s.logger.Debug("mutation rejected",
		"kind", kind,
		"method", r.Method,
		"error", err,
		"request_id", requestIDFrom(r.Context()),
	)
}

// recordAudit queues an audit entry for a successful mutation.
func (s *Server) recordAudit(r *http.Request, action, kind string, id int, details map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     action,
		EntityKind: kind,
		Actor:      actorFrom(r),
		RequestID:  requestIDFrom(r.Context()),
		Details:    details,
	}
	if id > 0 {
		entry.EntityID = strconv.Itoa(id)
	}
	s.audit.Record(entry)
}

// actorFrom names the caller: the token subject, or "anonymous".
func actorFrom(r *http.Request) string {
	if c := claimsFrom(r.Context()); c != nil && c.Subject != "" {
		return c.Subject
	}
	return "anonymous"
}
