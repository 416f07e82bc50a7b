package journey

import (
	"encoding/json"

	"github.com/aihub/orchestrator/internal/model"
	"github.com/aihub/orchestrator/internal/redact"
)

func toMap(state *model.JourneyState) (map[string]any, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromMap(raw map[string]any) (*model.JourneyState, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var state model.JourneyState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func redactMap(payload map[string]any) map[string]any {
	return redact.Payload(payload)
}
