package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlain(buf *bytes.Buffer, jsonMode bool) *Renderer {
	return New(buf, Options{JSON: jsonMode, NoColor: true})
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	r := newPlain(&buf, true)

	require.NoError(t, r.JSON(map[string]any{"name": "Phishing", "changed": true}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Phishing", decoded["name"])
	assert.Equal(t, true, decoded["changed"])
	assert.True(t, r.JSONMode())
}

func TestDetailSkipsEmptyValues(t *testing.T) {
	var buf bytes.Buffer
	r := newPlain(&buf, false)

	r.Detail([]Row{
		{Label: "Name", Value: "Phishing Response"},
		{Label: "Description", Value: ""},
		{Label: "Status", Value: "published"},
	})

	out := buf.String()
	assert.Contains(t, out, "Phishing Response")
	assert.Contains(t, out, "published")
	assert.NotContains(t, out, "Description")
}

func TestTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	r := newPlain(&buf, false)

	r.Table([]string{"NAME", "STATUS"}, [][]string{
		{"Phishing Response", "published"},
		{"Malware", "draft"},
	})

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Phishing Response  published")
	assert.Contains(t, out, "Malware            draft")
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := newPlain(&buf, false)

	r.Table([]string{"NAME"}, nil)
	assert.Contains(t, buf.String(), "(none)")
}

func TestOutcome(t *testing.T) {
	var buf bytes.Buffer
	r := newPlain(&buf, false)

	r.Outcome(true, "response plan synced")
	r.Outcome(false, "already up to date")

	out := buf.String()
	assert.Contains(t, out, "changed  response plan synced")
	assert.Contains(t, out, "unchanged  already up to date")
}
