package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func (s sample) String() string {
	return s.Name + " x" + string(rune('0'+s.Count))
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatText, sample{Name: "relay", Count: 3}))
	assert.Equal(t, "relay x3\n", buf.String())
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, sample{Name: "relay", Count: 3}))

	var got sample
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sample{Name: "relay", Count: 3}, got)
	assert.Contains(t, buf.String(), "\n  \"name\"", "output should be indented")
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{
		"upstream": map[string]any{"base_url": "http://localhost/v1"},
	}
	require.NoError(t, Render(&buf, FormatYAML, data))
	assert.Equal(t, "upstream:\n  base_url: http://localhost/v1\n", buf.String())

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Contains(t, back, "upstream")
}

func TestNewFormatter_UnknownFallsBackToText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter("xml").Write(&buf, "plain"))
	assert.Equal(t, "plain\n", buf.String())
}
