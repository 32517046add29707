package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapsql/internal/events"
	"github.com/leapstack-labs/leapsql/internal/notebook"
	"github.com/leapstack-labs/leapsql/internal/scheduler"
)

type handlers struct {
	sched  *scheduler.Scheduler
	bus    *events.Bus
	logger *slog.Logger
}

func (h *handlers) getNotebook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Snapshot())
}

type settingsBody struct {
	DSN *string `json:"dsn"`
}

func (h *handlers) patchSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.sched.SaveSettings(notebook.NotebookSettings{DSN: body.DSN})
	writeJSON(w, http.StatusOK, h.sched.Snapshot())
}

type createCellBody struct {
	Type notebook.CellType `json:"type"`
	Code string             `json:"code"`
}

func (h *handlers) createCell(w http.ResponseWriter, r *http.Request) {
	var body createCellBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Type != notebook.CellImperative && body.Type != notebook.CellQuery {
		writeError(w, http.StatusBadRequest, fmt.Errorf("type must be %q or %q", notebook.CellImperative, notebook.CellQuery))
		return
	}
	c := h.sched.CreateCell(body.Type, body.Code)
	writeJSON(w, http.StatusOK, c)
}

type patchCellBody struct {
	Code  *string            `json:"code"`
	Type  *notebook.CellType `json:"type"`
	Order *int               `json:"order"`
}

func (h *handlers) patchCell(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body patchCellBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, ok := h.sched.UpdateCell(id, notebook.CellPatch{Code: body.Code, Type: body.Type, Order: body.Order})
	if !ok {
		writeError(w, http.StatusNotFound, notebook.ErrCellNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) deleteCell(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.sched.DeleteCell(id); !ok {
		writeError(w, http.StatusNotFound, notebook.ErrCellNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type runBody struct {
	CellID string `json:"cellId"`
}

func (h *handlers) runNotebook(w http.ResponseWriter, r *http.Request) {
	var body runBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, ok := h.sched.GetCell(body.CellID); !ok {
		writeError(w, http.StatusNotFound, notebook.ErrCellNotFound)
		return
	}
	runID := h.sched.Run(r.Context(), body.CellID)
	writeJSON(w, http.StatusOK, map[string]int64{"runId": runID})
}

func (h *handlers) testConnection(w http.ResponseWriter, r *http.Request) {
	result := h.sched.TestConnection(r.Context())
	status := "success"
	if !result.OK {
		status = "error"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "message": result.Message})
}

// events is the hand-rolled SSE stream of spec.md §6: datastar-go (the
// teacher's SSE library, internal/ui/features/*/handlers.go) is built
// around patching templ-rendered DOM fragments, not named JSON event
// frames a non-browser client parses by type — so this writes the
// event:/data:/id: frame fields directly, the plain net/http SSE idiom.
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id, ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSE(w, evt); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt events.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	if evt.RunID != 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", evt.RunID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
		return err
	}
	return nil
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err.Error() != "EOF" {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	http.Error(w, err.Error(), status)
}
