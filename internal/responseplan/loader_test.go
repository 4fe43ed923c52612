package responseplan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esctl/internal/errors"
)

const validPlanYAML = `name: Phishing Response
description: Standard playbook
template_status: published
phases:
  - name: Containment
    tasks:
      - name: Block sender
        owner: soc
        is_note_required: true
        searches:
          - name: Sender activity
            spl: index=mail sender=$sender$
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPlanYAML), 0o644))

	plan, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Phishing Response", plan.Name)
	assert.Equal(t, "published", plan.TemplateStatus)
	require.Len(t, plan.Phases, 1)
	require.Len(t, plan.Phases[0].Tasks, 1)

	task := plan.Phases[0].Tasks[0]
	assert.True(t, task.IsNoteRequired)
	require.Len(t, task.Searches, 1)
	assert.Equal(t, "index=mail sender=$sender$", task.Searches[0].SPL)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeFileNotFound, code)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("name: x\nphasez:\n  - name: y\n"), "plan.yaml")
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeFileUnmarshal, code)
}

func TestParseRequiresName(t *testing.T) {
	_, err := Parse([]byte("description: no name\n"), "plan.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
