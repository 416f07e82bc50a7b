package hub

import (
	"encoding/json"

	"github.com/aihub/orchestrator/internal/model"
)

func marshalJSON(v any) ([]byte, error) { return json.Marshal(v) }

func unmarshalJSON(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeHubEvent(payload map[string]any) (model.HubEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return model.HubEvent{}, err
	}
	var event model.HubEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return model.HubEvent{}, err
	}
	return event, nil
}
