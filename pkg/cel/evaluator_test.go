package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHit() map[string]any {
	return map[string]any{
		"id":           "abcde-12345",
		"is_published": true,
		"metadata": map[string]any{
			"fields": map[string]any{
				"001": "990001234",
				"035": []any{
					map[string]any{"ind1": "_", "ind2": "_", "subfields": map[string]any{"a": []any{"(AT-OBV)AC12345678"}}},
				},
			},
		},
		"access": map[string]any{"files": "open", "metadata": "open"},
	}
}

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name: "valid access check",
			expr: `access.files == "open"`,
		},
		{
			name: "valid nested metadata",
			expr: `has(metadata.fields) && "001" in metadata.fields`,
		},
		{
			name:      "invalid syntax",
			expr:      `access.files ==`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `payload.status == "active"`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompileFilter_RejectsNonBool(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.CompileFilter(`id`)
	assert.Error(t, err)
}

func TestFilterMatch(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"open access", `access.files == "open"`, true},
		{"restricted access", `access.files == "restricted"`, false},
		{"has mms id", `"001" in metadata.fields`, true},
		{"missing 856", `!("856" in metadata.fields)`, true},
		{"published", `record.is_published == true`, true},
		{"id prefix", `id.startsWith("abcde")`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := eval.CompileFilter(tt.expr)
			require.NoError(t, err)

			got, err := filter.Match(context.Background(), sampleHit())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.expr, filter.String())
		})
	}
}

func TestFilterMatch_MissingSubDocuments(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	filter, err := eval.CompileFilter(`!has(access.files)`)
	require.NoError(t, err)

	got, err := filter.Match(context.Background(), map[string]any{"id": "x"})
	require.NoError(t, err)
	assert.True(t, got)
}
