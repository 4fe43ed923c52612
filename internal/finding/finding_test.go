package finding

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esctl/internal/errors"
	"esctl/internal/splunk/splunktest"
	"esctl/internal/timefilter"
)

const testRefID = "2008e99d-af14-4fec-89da-b9b17a81820a@@notable@@time1768225865"

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := splunktest.NewServer(t, handler)
	return NewService(splunktest.NewClient(t, server.URL), nil, PathConfig{})
}

func apiItem(overrides map[string]any) map[string]any {
	item := map[string]any{
		"finding_id":       testRefID,
		"rule_title":       "Suspicious login",
		"rule_description": "Login from unusual location",
		"security_domain":  "access",
		"risk_object":      "jdoe",
		"risk_object_type": "user",
		"risk_score":       "25.0",
		"owner":            "unassigned",
		"status":           "1",
		"urgency":          "medium",
		"disposition":      "disposition:0",
	}
	for k, v := range overrides {
		item[k] = v
	}
	return item
}

func TestGetMapsWireKeys(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/servicesNS/nobody/SplunkEnterpriseSecuritySuite/public/v2/findings/"+testRefID, r.URL.Path)
		// The epoch embedded in the ref_id becomes the earliest bound.
		assert.Equal(t, "1768225865", r.URL.Query().Get("earliest"))
		json.NewEncoder(w).Encode(apiItem(nil))
	}))

	f, err := svc.Get(context.Background(), testRefID)
	require.NoError(t, err)

	assert.Equal(t, testRefID, f.RefID)
	assert.Equal(t, "Suspicious login", f.Title)
	assert.Equal(t, "Login from unusual location", f.Description)
	assert.Equal(t, "jdoe", f.Entity)
	assert.Equal(t, "user", f.EntityType)
	assert.Equal(t, 25, f.FindingScore)
	assert.Equal(t, "new", f.Status)
	assert.Equal(t, "unassigned", f.Disposition)
}

func TestGetNumericScoreAndStatus(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiItem(map[string]any{
			"risk_score": 80,
			"status":     5,
		}))
	}))

	f, err := svc.Get(context.Background(), testRefID)
	require.NoError(t, err)
	assert.Equal(t, 80, f.FindingScore)
	assert.Equal(t, "closed", f.Status)
}

func TestCreateRequiresFields(t *testing.T) {
	svc := NewService(nil, nil, PathConfig{})

	_, err := svc.Create(context.Background(), &Finding{Title: "x", Description: "y"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "security_domain")
	assert.Contains(t, err.Error(), "entity")
	assert.Contains(t, err.Error(), "finding_score")

	_, err = svc.Create(context.Background(), &Finding{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
}

func TestCreatePayload(t *testing.T) {
	var payload map[string]any
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		json.NewEncoder(w).Encode(apiItem(nil))
	}))

	_, err := svc.Create(context.Background(), &Finding{
		Title:          "Suspicious login",
		Description:    "Login from unusual location",
		SecurityDomain: "access",
		Entity:         "jdoe",
		EntityType:     "user",
		FindingScore:   25,
		Status:         "in_progress",
		Disposition:    "true_positive",
		Fields:         []CustomField{{Name: "src_ip", Value: "10.0.0.1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Suspicious login", payload["rule_title"])
	assert.Equal(t, "Login from unusual location", payload["rule_description"])
	assert.Equal(t, "jdoe", payload["risk_object"])
	assert.Equal(t, "user", payload["risk_object_type"])
	assert.Equal(t, "2", payload["status"])
	assert.Equal(t, "disposition:1", payload["disposition"])
	assert.Equal(t, "SplunkEnterpriseSecuritySuite", payload["app"])
	// Custom fields are flattened into the top level.
	assert.Equal(t, "10.0.0.1", payload["src_ip"])
}

func TestUpdateRestrictedFields(t *testing.T) {
	var (
		updatePath  string
		notableTime string
		payload     map[string]string
	)
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(apiItem(nil))
			return
		}
		updatePath = r.URL.Path
		notableTime = r.URL.Query().Get("notable_time")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte("{}"))
	}))

	result, err := svc.Update(context.Background(), testRefID, UpdateParams{
		Owner:  "analyst",
		Status: "resolved",
	})
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, "unassigned", result.Before.Owner)
	assert.Equal(t, "analyst", result.After.Owner)
	assert.Equal(t, "resolved", result.After.Status)

	// Updates go through the mission control investigations API.
	assert.Equal(t, "/servicesNS/nobody/missioncontrol/v1/investigations/"+testRefID, updatePath)
	assert.Equal(t, "1768225865", notableTime)
	assert.Equal(t, "analyst", payload["assignee"], "owner is called assignee on the wire")
	assert.Equal(t, "4", payload["status"])
	assert.NotContains(t, payload, "owner")
}

func TestUpdateNoChanges(t *testing.T) {
	posts := 0
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			posts++
		}
		json.NewEncoder(w).Encode(apiItem(nil))
	}))

	result, err := svc.Update(context.Background(), testRefID, UpdateParams{Owner: "unassigned"})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Zero(t, posts, "no write when already in desired state")
}

func TestUpdateNoUpdatableFields(t *testing.T) {
	svc := NewService(nil, nil, PathConfig{})

	_, err := svc.Update(context.Background(), testRefID, UpdateParams{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestUpdateMalformedRefID(t *testing.T) {
	svc := NewService(nil, nil, PathConfig{})

	_, err := svc.Update(context.Background(), "not-a-ref-id", UpdateParams{Owner: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsMalformedReferenceID(err))
}

func TestUpdateMissingFinding(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"messages":[{"type":"ERROR","text":"Object not found"}]}`))
	}))

	_, err := svc.Update(context.Background(), testRefID, UpdateParams{Owner: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListDefaultWindowAndTitleFilter(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "-24h", r.URL.Query().Get("earliest"))
		assert.Equal(t, "now", r.URL.Query().Get("latest"))
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				apiItem(nil),
				apiItem(map[string]any{"finding_id": "other", "rule_title": "Other finding"}),
			},
		})
	}))

	findings, err := svc.List(context.Background(), ListOptions{Title: "Suspicious login"})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, testRefID, findings[0].RefID)
}

func TestListExplicitWindowAndLimit(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "-7d", r.URL.Query().Get("earliest"))
		assert.Equal(t, "now", r.URL.Query().Get("latest"))
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				apiItem(map[string]any{"finding_id": "a"}),
				apiItem(map[string]any{"finding_id": "b"}),
				apiItem(map[string]any{"finding_id": "c"}),
			},
		})
	}))

	findings, err := svc.List(context.Background(), ListOptions{
		Window: timefilter.Window{Earliest: "-7d", Latest: "now"},
		Limit:  2,
	})
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "a", findings[0].RefID)
	assert.Equal(t, "b", findings[1].RefID)
}

func TestListNotFoundIsEmpty(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"messages":[{"type":"ERROR","text":"Object not found"}]}`))
	}))

	findings, err := svc.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, findings)
}
