package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "almaconnector/pkg/errors"
)

func TestReadCSV(t *testing.T) {
	doc := "mms_id,new_url\n990001,https://a.example.org\n\n990002, https://b.example.org\n"

	rows, err := ReadCSV(strings.NewReader(doc), "mms_id", "new_url")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"mms_id": "990002", "new_url": "https://b.example.org"}, rows[1])
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("mms_id,url\n1,x\n"), "mms_id", "new_url")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "new_url")
}

func TestReadCSV_ShortRowsAndBOM(t *testing.T) {
	doc := "\ufeffac_number,filename,access,marcid\nAC123,,open\n"

	rows, err := ReadCSV(strings.NewReader(doc), "ac_number", "filename", "access", "marcid")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AC123", rows[0]["ac_number"])
	assert.Equal(t, "", rows[0]["marcid"])
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.True(t, apperrors.IsValidation(err))
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.csv")
	require.NoError(t, os.WriteFile(path, []byte("marc_id,cms_id\nabc,1\n"), 0o600))

	rows, err := ReadCSVFile(path, "marc_id", "cms_id")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, apperrors.IsValidation(err))
}

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		required []string
		want     map[string]string
		wantErr  bool
	}{
		{
			name:     "strings",
			raw:      `{"marc_id": "abcde-12345", "cms_id": "77"}`,
			required: []string{"marc_id"},
			want:     map[string]string{"marc_id": "abcde-12345", "cms_id": "77"},
		},
		{
			name: "numbers are formatted",
			raw:  `{"cms_id": 77}`,
			want: map[string]string{"cms_id": "77"},
		},
		{
			name:     "missing key",
			raw:      `{"cms_id": "77"}`,
			required: []string{"marc_id"},
			wantErr:  true,
		},
		{
			name:    "not an object",
			raw:     `["a"]`,
			wantErr: true,
		},
		{
			name:    "nested value",
			raw:     `{"a": {"b": 1}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMetadata(tt.raw, tt.required...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
