package utils

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		resp     Response
		expected string
	}{
		{
			name:     "Success",
			resp:     NewSuccessResponse("ok", map[string]int{"id": 7}),
			expected: `{"status":200,"message":"ok","data":{"id":7}}`,
		},
		{
			name:     "Created",
			resp:     NewResponse(http.StatusCreated, "created", nil),
			expected: `{"status":201,"message":"created","data":null}`,
		},
		{
			name:     "Error keeps null data",
			resp:     NewErrorResponse(http.StatusConflict, "slot taken"),
			expected: `{"status":409,"message":"slot taken","data":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.resp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(b))
		})
	}
}
