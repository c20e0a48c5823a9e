package marc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseFieldPath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      FieldPath
		wantError bool
	}{
		{name: "url field", input: "856.4._.u", want: FieldPath{Tag: "856", Ind1: "4", Ind2: "_", Code: "u"}},
		{name: "author", input: "100.1._.a", want: FieldPath{Tag: "100", Ind1: "1", Ind2: "_", Code: "a"}},
		{name: "local field", input: "995._._.9", want: FieldPath{Tag: "995", Ind1: "_", Ind2: "_", Code: "9"}},
		{name: "too few parts", input: "856.4.u", wantError: true},
		{name: "short tag", input: "85.4._.u", wantError: true},
		{name: "control field", input: "001._._.a", wantError: true},
		{name: "long indicator", input: "856.44._.u", wantError: true},
		{name: "empty code", input: "856.4._.", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFieldPath(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestFieldPathStringParsesBack(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := FieldPath{
			Tag:  rapid.StringMatching(`[1-9][0-9]{2}`).Draw(t, "tag"),
			Ind1: rapid.StringMatching(`[0-9_]`).Draw(t, "ind1"),
			Ind2: rapid.StringMatching(`[0-9_]`).Draw(t, "ind2"),
			Code: rapid.StringMatching(`[a-z0-9]`).Draw(t, "code"),
		}

		got, err := ParseFieldPath(p.String())
		if err != nil {
			t.Fatalf("parse %q: %v", p.String(), err)
		}
		if got != p {
			t.Fatalf("got %+v, want %+v", got, p)
		}
	})
}

func TestBlankIndicatorMatchesSpaceAndEmpty(t *testing.T) {
	path := FieldPath{Tag: "856", Ind1: "4", Ind2: "_", Code: "u"}
	assert.True(t, path.matches(&DataField{Tag: "856", Ind1: "4", Ind2: " "}))
	assert.True(t, path.matches(&DataField{Tag: "856", Ind1: "4", Ind2: ""}))
	assert.False(t, path.matches(&DataField{Tag: "856", Ind1: "4", Ind2: "1"}))
}
