package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorAcceptsValidConfig(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	cfg := map[string]interface{}{
		"version": "1.0",
		"loader":  map[string]interface{}{"bind_batch_size": 6, "idle_recheck": "500ms"},
		"defaults": []interface{}{
			map[string]interface{}{"title": "Camera", "target": "launch:main?component=com.cam/.Main", "position": 0},
		},
		"my_extension": map[string]interface{}{"anything": true},
	}
	assert.NoError(t, v.Validate(cfg))
}

func TestValidatorRejectsBadTypes(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	err = v.Validate(map[string]interface{}{
		"loader": map[string]interface{}{"bind_batch_size": "six"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/loader/bind_batch_size")

	err = v.Validate(map[string]interface{}{
		"defaults": []interface{}{map[string]interface{}{"title": "No target"}},
	})
	assert.Error(t, err)
}

func TestValidatorReportsLeafViolations(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	err = v.Validate(map[string]interface{}{
		"loader":   map[string]interface{}{"bind_batch_size": "six"},
		"defaults": []interface{}{map[string]interface{}{"title": "No target"}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.Violations)
	for _, violation := range verr.Violations {
		assert.NotEmpty(t, violation.Message)
	}
	assert.Contains(t, err.Error(), "schema validation failed")
}
