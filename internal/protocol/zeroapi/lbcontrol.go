package zeroapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"localcloud/internal/storage/engine"
)

func groupView(g *engine.TargetGroup) map[string]any {
	return map[string]any{
		"id":       g.ID,
		"name":     g.Name,
		"protocol": g.Protocol,
		"port":     g.Port,
	}
}

func targetView(t *engine.LBTarget) map[string]any {
	return map[string]any{
		"id":      t.TargetID,
		"host":    t.Host,
		"port":    t.Port,
		"weight":  t.Weight,
		"healthy": t.Healthy,
	}
}

func listenerView(l *engine.Listener) map[string]any {
	return map[string]any{
		"id":           l.ID,
		"port":         l.Port,
		"target_group": l.TargetGroupID,
		"protocol":     l.Protocol,
	}
}

func (a *API) createTargetGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Protocol string `json:"protocol"`
		Port     int    `json:"port"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	g, err := a.eng.CreateTargetGroup(req.Name, req.Protocol, req.Port)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, groupView(g))
}

func (a *API) listTargetGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.eng.ListTargetGroups()
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(groups))
	for i := range groups {
		out = append(out, groupView(&groups[i]))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"target_groups": out})
}

func (a *API) deleteTargetGroup(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.DeleteTargetGroup(chi.URLParam(r, "group")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) registerTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Host   string `json:"host"`
		Port   int    `json:"port"`
		Weight int    `json:"weight"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	t, err := a.eng.RegisterTarget(chi.URLParam(r, "group"), req.ID, req.Host, req.Port, req.Weight)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, targetView(t))
}

func (a *API) listTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := a.eng.ListGroupTargets(chi.URLParam(r, "group"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(targets))
	for i := range targets {
		out = append(out, targetView(&targets[i]))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"targets": out})
}

func (a *API) deregisterTarget(w http.ResponseWriter, r *http.Request) {
	group, target := chi.URLParam(r, "group"), chi.URLParam(r, "target")
	if err := a.eng.DeregisterTarget(group, target); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setTargetHealth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Healthy bool `json:"healthy"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	group, target := chi.URLParam(r, "group"), chi.URLParam(r, "target")
	if err := a.eng.SetTargetHealth(group, target, req.Healthy); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"id": target, "healthy": req.Healthy})
}

func (a *API) createListener(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port        int    `json:"port"`
		TargetGroup string `json:"target_group"`
		Protocol    string `json:"protocol"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	l, err := a.eng.CreateListener(req.Port, req.TargetGroup, req.Protocol)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, listenerView(l))
}

func (a *API) listListeners(w http.ResponseWriter, r *http.Request) {
	listeners, err := a.eng.ListListeners()
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(listeners))
	for i := range listeners {
		out = append(out, listenerView(&listeners[i]))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"listeners": out})
}

func (a *API) deleteListener(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.DeleteListener(chi.URLParam(r, "listener")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
