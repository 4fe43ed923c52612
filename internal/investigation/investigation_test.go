package investigation

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esctl/internal/errors"
	"esctl/internal/splunk/splunktest"
)

const testGUID = "c3f2a1d0-1111-2222-3333-444455556666"

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := splunktest.NewServer(t, handler)
	return NewService(splunktest.NewClient(t, server.URL), nil, PathConfig{})
}

func apiItem(overrides map[string]any) map[string]any {
	item := map[string]any{
		"investigation_guid": testGUID,
		"name":               "Phishing campaign",
		"description":        "Initial triage",
		"status":             "2",
		"disposition":        "disposition:1",
		"owner":              "analyst",
		"urgency":            "high",
		"sensitivity":        "Amber",
		"consolidated_findings": map[string]any{
			"event_id": []string{"f-1", "f-2"},
		},
	}
	for k, v := range overrides {
		item[k] = v
	}
	return item
}

func TestGetByRefID(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/servicesNS/nobody/missioncontrol/public/v2/investigations", r.URL.Path)
		// Single-item lookup is an ids filter on the collection.
		assert.Equal(t, testGUID, r.URL.Query().Get("ids"))
		json.NewEncoder(w).Encode([]map[string]any{apiItem(nil)})
	}))

	inv, err := svc.Get(context.Background(), testGUID)
	require.NoError(t, err)

	assert.Equal(t, testGUID, inv.RefID)
	assert.Equal(t, "Phishing campaign", inv.Name)
	assert.Equal(t, "in_progress", inv.Status)
	assert.Equal(t, "true_positive", inv.Disposition)
	assert.Equal(t, "amber", inv.Sensitivity)
	assert.Equal(t, []string{"f-1", "f-2"}, inv.FindingIDs)
}

func TestGetSingleEventID(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{apiItem(map[string]any{
			"consolidated_findings": map[string]any{"event_id": "f-only"},
		})})
	}))

	inv, err := svc.Get(context.Background(), testGUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"f-only"}, inv.FindingIDs)
}

func TestGetEmptyListIsNotFound(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))

	_, err := svc.Get(context.Background(), testGUID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(nil, nil, PathConfig{})

	_, err := svc.Create(context.Background(), &Investigation{Description: "no name"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestCreateMapsEnumsAndMergesGUID(t *testing.T) {
	var payload map[string]any
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		// The store returns only the GUID on create.
		json.NewEncoder(w).Encode(map[string]any{"investigation_guid": testGUID})
	}))

	after, err := svc.Create(context.Background(), &Investigation{
		Name:        "Phishing campaign",
		Status:      "new",
		Disposition: "true_positive",
		Sensitivity: "amber",
	})
	require.NoError(t, err)

	assert.Equal(t, "1", payload["status"])
	assert.Equal(t, "disposition:1", payload["disposition"])
	assert.Equal(t, "Amber", payload["sensitivity"])

	assert.Equal(t, testGUID, after.RefID)
	assert.Equal(t, "Phishing campaign", after.Name)
	assert.Equal(t, "new", after.Status)
}

func TestUpdateFieldsAndFindings(t *testing.T) {
	var (
		fieldPayload    map[string]any
		findingsPayload map[string][]string
		fieldPath       string
		findingsPath    string
	)
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]any{apiItem(nil)})
		case r.URL.Path == "/servicesNS/nobody/missioncontrol/public/v2/investigations/"+testGUID+"/findings":
			findingsPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&findingsPayload))
			w.Write([]byte("{}"))
		default:
			fieldPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&fieldPayload))
			w.Write([]byte("{}"))
		}
	}))

	result, err := svc.Update(context.Background(), testGUID, UpdateParams{
		Status:      "resolved",
		Sensitivity: "red",
		FindingIDs:  []string{"f-2", "f-3"},
	})
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, "/servicesNS/nobody/missioncontrol/public/v2/investigations/"+testGUID, fieldPath)
	assert.Equal(t, "4", fieldPayload["status"])
	assert.Equal(t, "Red", fieldPayload["sensitivity"])
	assert.NotContains(t, fieldPayload, "name")

	// Only f-3 is new; f-2 is already attached.
	assert.NotEmpty(t, findingsPath)
	assert.Equal(t, []string{"f-3"}, findingsPayload["finding_ids"])

	assert.Equal(t, "resolved", result.After.Status)
	assert.Equal(t, []string{"f-1", "f-2", "f-3"}, result.After.FindingIDs)
	assert.Equal(t, "in_progress", result.Before.Status)
}

func TestUpdateNoChanges(t *testing.T) {
	writes := 0
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writes++
		}
		json.NewEncoder(w).Encode([]map[string]any{apiItem(nil)})
	}))

	result, err := svc.Update(context.Background(), testGUID, UpdateParams{
		Owner:      "analyst",
		FindingIDs: []string{"f-1"},
	})
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Zero(t, writes)
}

func TestUpdateNothingProvided(t *testing.T) {
	svc := NewService(nil, nil, PathConfig{})

	_, err := svc.Update(context.Background(), testGUID, UpdateParams{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestListNameFilterAndWindow(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "-24h", r.URL.Query().Get("create_time_min"))
		assert.Equal(t, "now", r.URL.Query().Get("create_time_max"))
		json.NewEncoder(w).Encode([]map[string]any{
			apiItem(nil),
			apiItem(map[string]any{"investigation_guid": "other", "name": "Malware outbreak"}),
		})
	}))

	investigations, err := svc.List(context.Background(), ListOptions{Name: "Phishing campaign"})
	require.NoError(t, err)
	require.Len(t, investigations, 1)
	assert.Equal(t, testGUID, investigations[0].RefID)
}

func TestListLimit(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			apiItem(map[string]any{"investigation_guid": "a"}),
			apiItem(map[string]any{"investigation_guid": "b"}),
			apiItem(map[string]any{"investigation_guid": "c"}),
		})
	}))

	investigations, err := svc.List(context.Background(), ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, investigations, 2)
	assert.Equal(t, "a", investigations[0].RefID)
}
