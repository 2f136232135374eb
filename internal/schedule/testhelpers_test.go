package schedule

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// moduleDoc renders a module file with the given actuators and parameters.
func moduleDoc(t *testing.T, nodeIDs []any, params ...param) []byte {
	t.Helper()
	actuators := make([]map[string]any, len(nodeIDs))
	for i, id := range nodeIDs {
		actuators[i] = map[string]any{"nodeId": id}
	}
	data, err := json.Marshal(map[string]any{
		"name":                           "Outdoor Light Switch",
		"registeredActuators":            actuators,
		"userAppConfigurationParameters": params,
	})
	require.NoError(t, err)
	return data
}

func defaultParams(start1, stop1 string) []param {
	return []param{
		{"Start time 1", start1},
		{"Stop time 1", stop1},
		{"Start time 2", UnsetTime},
		{"Stop time 2", UnsetTime},
		{"Normal State", "off"},
	}
}
