package zeroapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"localcloud/internal/storage/engine"
)

func (a *API) createQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name              string `json:"name"`
		VisibilityTimeout *int   `json:"visibility_timeout"`
		DelaySeconds      *int   `json:"delay_seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	q, err := a.eng.CreateQueue(req.Name, engine.QueueSettings{
		VisibilityTimeout: req.VisibilityTimeout,
		DelaySeconds:      req.DelaySeconds,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, queueView(q, 0))
}

func (a *API) listQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := a.eng.ListQueues(r.URL.Query().Get("prefix"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(queues))
	for i := range queues {
		depth, err := a.eng.QueueDepth(queues[i].Name)
		if err != nil {
			a.writeError(w, err)
			return
		}
		out = append(out, queueView(&queues[i], depth))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"queues": out})
}

func (a *API) deleteQueue(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.DeleteQueue(chi.URLParam(r, "queue")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	msg, err := a.eng.SendMessage(chi.URLParam(r, "queue"), req.Body)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"id": msg.ID})
}

func (a *API) receiveMessages(w http.ResponseWriter, r *http.Request) {
	max := 1
	if v := r.URL.Query().Get("max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			max = n
		}
	}
	msgs, err := a.eng.ReceiveMessage(chi.URLParam(r, "queue"), max)
	if err != nil {
		a.writeError(w, err)
		return
	}
	type message struct {
		ID            string `json:"id"`
		Body          string `json:"body"`
		ReceiptHandle string `json:"receipt_handle"`
		ReceiveCount  int    `json:"receive_count"`
	}
	out := make([]message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, message{ID: m.ID, Body: m.Body, ReceiptHandle: m.ReceiptHandle, ReceiveCount: m.ReceiveCount})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	queue, handle := chi.URLParam(r, "queue"), chi.URLParam(r, "handle")
	if err := a.eng.DeleteMessage(queue, handle); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
