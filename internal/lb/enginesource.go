package lb

import (
	"localcloud/internal/storage/engine"
)

// EngineSource feeds the data plane from the engine's listener and target
// group tables.
type EngineSource struct {
	eng *engine.Engine
}

// NewEngineSource wraps the engine as a TargetSource.
func NewEngineSource(eng *engine.Engine) *EngineSource {
	return &EngineSource{eng: eng}
}

func (s *EngineSource) DataPlaneListeners() ([]Listener, error) {
	rows, err := s.eng.ListListeners()
	if err != nil {
		return nil, err
	}
	out := make([]Listener, 0, len(rows))
	for _, l := range rows {
		out = append(out, Listener{ID: l.ID, Port: l.Port, TargetGroupID: l.TargetGroupID})
	}
	return out, nil
}

func (s *EngineSource) DataPlaneBackends(targetGroupID string) ([]Backend, error) {
	rows, err := s.eng.HealthyTargets(targetGroupID)
	if err != nil {
		return nil, err
	}
	out := make([]Backend, 0, len(rows))
	for _, t := range rows {
		out = append(out, Backend{ID: t.TargetID, Host: t.Host, Port: t.Port, Weight: t.Weight})
	}
	return out, nil
}
