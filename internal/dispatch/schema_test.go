package dispatch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolDefsAreWellFormed(t *testing.T) {
	defs := ToolDefs()
	require.Len(t, defs, 18)

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		assert.NotEmpty(t, def.Name)
		assert.False(t, seen[def.Name], "duplicate tool name %q", def.Name)
		seen[def.Name] = true

		assert.NotEmpty(t, def.Description, "%s needs a description", def.Name)
		assert.True(t, json.Valid(def.Parameters), "%s parameters are not valid JSON", def.Name)
	}
}

// Every advertised tool must be an operation Parse understands,
// otherwise the schema and the dispatcher have drifted apart.
func TestToolDefsMatchParser(t *testing.T) {
	d, _ := newTestDispatcher(t)

	for _, def := range ToolDefs() {
		_, err := d.Parse(call(def.Name, `{}`))
		if err == nil {
			continue
		}
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			assert.NotEqual(t, "unknown operation", vErr.Reason, "tool %q is advertised but not dispatchable", def.Name)
			continue
		}
		t.Errorf("tool %q: unexpected error %v", def.Name, err)
	}
}
