package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ay9334524-ux/mecfinder-backend/internal/auth"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
)

// topicsFor maps a principal onto the topics it may watch.
func topicsFor(p auth.Principal) []string {
	switch p.Role {
	case auth.RoleWorker:
		return []string{events.WorkerTopic(p.Subject)}
	case auth.RoleCustomer:
		return []string{events.CustomerTopic(p.Subject)}
	case auth.RoleService, auth.RoleAdmin:
		return []string{events.OpsTopic}
	}
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	topics := topicsFor(principal)
	if len(topics) == 0 {
		s.writeError(w, http.StatusForbidden, "no event stream for role")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Subscribe before replaying so nothing published in between is lost;
	// the replay high-water mark filters the overlap.
	ch, cancel := s.events.Subscribe(topics...)
	defer cancel()

	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	if replays(principal, lastID) {
		for _, ev := range s.events.SnapshotSince(lastID, topics...) {
			if err := writeSSE(w, ev); err != nil {
				return
			}
			lastID = ev.ID
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(s.config.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.ID <= lastID {
				continue
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// replays reports whether buffered events are sent before live ones. The
// ops stream always replays for dashboards. Worker and customer streams only
// resume after Last-Event-ID; a fresh connection must not see offers that
// have since closed.
func replays(p auth.Principal, lastID int64) bool {
	switch p.Role {
	case auth.RoleService, auth.RoleAdmin:
		return true
	}
	return lastID > 0
}

func writeSSE(w http.ResponseWriter, ev events.Event) error {
	if _, err := fmt.Fprintf(w, "id: %d\n", ev.ID); err != nil {
		return err
	}
	if ev.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
			return err
		}
	}
	// Payloads are single-line JSON.
	if _, err := fmt.Fprintf(w, "data: %s\n\n", ev.Data); err != nil {
		return err
	}
	return nil
}
