package responseplan

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esctl/internal/errors"
	"esctl/internal/reconcile"
	"esctl/internal/splunk/splunktest"
)

func newTestManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	server := splunktest.NewServer(t, handler)
	return NewManager(splunktest.NewClient(t, server.URL), nil, PathConfig{})
}

func desiredPlan() *reconcile.ResponsePlan {
	return &reconcile.ResponsePlan{
		Name:        "Phishing Response",
		Description: "Standard playbook",
		Phases: []reconcile.Phase{
			{
				Name: "Containment",
				Tasks: []reconcile.Task{
					{
						Name:  "Block sender",
						Owner: "soc",
						Searches: []reconcile.Search{
							{Name: "Sender activity", SPL: "index=mail sender=$sender$"},
						},
					},
				},
			},
		},
	}
}

// storedPlan is desiredPlan as the store would return it.
func storedPlan() map[string]any {
	return map[string]any{
		"id":              "tpl-1",
		"name":            "Phishing Response",
		"description":     "Standard playbook",
		"template_status": "draft",
		"phases": []map[string]any{
			{
				"id":   "ph-1",
				"name": "Containment",
				"tasks": []map[string]any{
					{
						"id":               "t-1",
						"name":             "Block sender",
						"owner":            "soc",
						"is_note_required": false,
						"suggestions": map[string]any{
							"searches": []map[string]any{
								{"name": "Sender activity", "spl": "index=mail sender=$sender$"},
							},
						},
					},
				},
			},
		},
	}
}

func listBody(plans ...map[string]any) map[string]any {
	items := make([]map[string]any, 0, len(plans))
	items = append(items, plans...)
	return map[string]any{"items": items}
}

func TestSyncCreatesWhenAbsent(t *testing.T) {
	var postPath string
	var payload apiPlan
	mgr := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(listBody())
			return
		}
		postPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		json.NewEncoder(w).Encode(map[string]any{"id": "tpl-new"})
	}))

	result, err := mgr.Sync(context.Background(), desiredPlan(), false)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.True(t, result.Applied)
	assert.Equal(t, "/servicesNS/nobody/missioncontrol/v1/responsetemplates", postPath)
	assert.Equal(t, "tpl-new", result.Plan.After.ID)

	assert.Empty(t, payload.ID)
	assert.Equal(t, "draft", payload.TemplateStatus)
	require.Len(t, payload.Phases, 1)

	phase := payload.Phases[0]
	assert.Equal(t, 1, phase.Order)
	assert.NotEmpty(t, phase.ID)
	require.Len(t, phase.Tasks, 1)

	task := phase.Tasks[0]
	assert.Equal(t, 1, task.Order)
	assert.Equal(t, "Pending", task.Status)
	assert.True(t, task.IsNewTask)
	assert.NotEmpty(t, task.ID)
	require.Len(t, task.Suggestions.Searches, 1)
	assert.Equal(t, "index=mail sender=$sender$", task.Suggestions.Searches[0].SPL)
}

func TestSyncUpdatePreservesIDs(t *testing.T) {
	var postPath string
	var payload apiPlan
	mgr := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(listBody(storedPlan()))
			return
		}
		postPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		json.NewEncoder(w).Encode(map[string]any{"id": "tpl-1"})
	}))

	desired := desiredPlan()
	desired.Phases[0].Tasks = append(desired.Phases[0].Tasks, reconcile.Task{Name: "Quarantine mail"})

	result, err := mgr.Sync(context.Background(), desired, false)
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, "/servicesNS/nobody/missioncontrol/v1/responsetemplates/tpl-1", postPath)

	assert.Equal(t, "tpl-1", payload.ID)
	require.Len(t, payload.Phases, 1)
	assert.Equal(t, "ph-1", payload.Phases[0].ID)
	require.Len(t, payload.Phases[0].Tasks, 2)

	matched := payload.Phases[0].Tasks[0]
	assert.Equal(t, "t-1", matched.ID)
	assert.False(t, matched.IsNewTask)

	added := payload.Phases[0].Tasks[1]
	assert.NotEmpty(t, added.ID)
	assert.NotEqual(t, "t-1", added.ID)
	assert.True(t, added.IsNewTask)
	assert.Equal(t, 2, added.Order)
}

func TestSyncNoChanges(t *testing.T) {
	writes := 0
	mgr := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writes++
		}
		json.NewEncoder(w).Encode(listBody(storedPlan()))
	}))

	result, err := mgr.Sync(context.Background(), desiredPlan(), false)
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.False(t, result.Applied)
	assert.Zero(t, writes)
}

func TestSyncDryRun(t *testing.T) {
	writes := 0
	mgr := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writes++
		}
		json.NewEncoder(w).Encode(listBody())
	}))

	result, err := mgr.Sync(context.Background(), desiredPlan(), true)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.False(t, result.Applied)
	assert.NotEmpty(t, result.Plan.Ops)
	assert.Zero(t, writes)
}

func TestSyncRequiresPhases(t *testing.T) {
	mgr := NewManager(nil, nil, PathConfig{})

	_, err := mgr.Sync(context.Background(), &reconcile.ResponsePlan{Name: "empty"}, false)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "phases")
}

func TestGetByNameScansCollection(t *testing.T) {
	mgr := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listBody(
			map[string]any{"id": "tpl-0", "name": "Other"},
			storedPlan(),
		))
	}))

	plan, err := mgr.GetByName(context.Background(), "Phishing Response")
	require.NoError(t, err)
	assert.Equal(t, "tpl-1", plan.ID)
	assert.Equal(t, "soc", plan.Phases[0].Tasks[0].Owner)

	_, err = mgr.GetByName(context.Background(), "Missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	var method, path string
	mgr := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(listBody(storedPlan()))
			return
		}
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	result, err := mgr.Delete(context.Background(), "Phishing Response")
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, "Phishing Response", result.Before.Name)
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/servicesNS/nobody/missioncontrol/v1/responsetemplates/tpl-1", path)
}

func TestDeleteAlreadyAbsent(t *testing.T) {
	deletes := 0
	mgr := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deletes++
		}
		json.NewEncoder(w).Encode(listBody())
	}))

	result, err := mgr.Delete(context.Background(), "Missing")
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Zero(t, deletes)
}
