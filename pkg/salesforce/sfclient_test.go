package salesforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSObject = "Contract_Review__c"

// newTestSFClient creates an sfClient backed by an httptest server.
func newTestSFClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)

	sf, err := gosf.Init(gosf.Creds{
		AccessToken: "test-token",
		Domain:      ts.URL,
	},
		gosf.WithValidateAuthentication(false),
		gosf.WithRoundTripper(http.DefaultTransport),
	)
	require.NoError(t, err)
	require.NotNil(t, sf)

	return NewClient(sf), ts
}

func TestSFClient_Query(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/query")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalSize": 1,
			"done":      true,
			"records": []map[string]any{
				{
					"attributes":       map[string]any{"type": testSObject},
					"Id":               "a01xx",
					FieldDocumentID:    "doc-001",
					FieldReviewer:      "jane",
					FieldUpdatedCount:  2,
					FieldCorrections:   `{"attr-001":"March 1, 2024"}`,
					FieldReviewedAt:    "2026-03-01T10:00:00Z",
					FieldVersionID:     "ver-13",
					FieldReviewID:      "rs-1",
				},
			},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	records, err := FindReviewRecords(context.Background(), client, testSObject, "doc-001")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a01xx", records[0].ID)
	assert.Equal(t, "jane", records[0].Reviewer)
	assert.Equal(t, 2, records[0].UpdatedCount)
}

func TestSFClient_Query_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "invalid SOQL", "errorCode": "MALFORMED_QUERY"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	var out []map[string]any
	err := client.Query(context.Background(), "INVALID SOQL", &out)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: query")
}

func TestSFClient_InsertOne(t *testing.T) {
	var got map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path != "/query" {
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "a01new",
				"success": true,
				"errors":  []any{},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	rec, err := NewReviewRecord("doc-001", "ver-13", "rs-1", "jane",
		map[string]string{"attr-001": "March 1, 2024"}, 1, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	id, err := CreateReviewRecord(context.Background(), client, testSObject, rec)
	require.NoError(t, err)
	assert.Equal(t, "a01new", id)
	assert.Equal(t, "doc-001", got[FieldDocumentID])
	assert.Equal(t, "2026-03-01T10:00:00Z", got[FieldReviewedAt])
}

func TestSFClient_InsertOne_Failure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "",
				"success": false,
				"errors":  []map[string]any{{"message": "required field missing"}},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	_, err := client.InsertOne(context.Background(), testSObject, map[string]any{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert Contract_Review__c failed")
}

func TestSFClient_UpdateOne(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	fields := map[string]any{FieldUpdatedCount: 3}
	err := client.UpdateOne(context.Background(), testSObject, "a01xx", fields)
	require.NoError(t, err)
	_, mutated := fields["Id"]
	assert.False(t, mutated)
}

func TestSFClient_UpdateOne_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "invalid field", "errorCode": "INVALID_FIELD"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	err := client.UpdateOne(context.Background(), testSObject, "a01xx", map[string]any{
		"BadField__c": "value",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: update")
}

func TestSFClient_DescribeSObject(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// go-salesforce constructs URL as: InstanceUrl + /services/data/vXX.X + uri
		assert.Contains(t, r.URL.Path, "/sobjects/"+testSObject+"/describe")
		fields := []map[string]any{
			{"name": "Id", "label": "Record ID", "type": "id", "length": 18, "updateable": false, "createable": false},
		}
		for _, name := range reviewFields {
			fields = append(fields, map[string]any{"name": name, "type": "string", "updateable": true, "createable": true})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":   testSObject,
			"label":  "Contract Review",
			"fields": fields,
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	desc, err := client.DescribeSObject(context.Background(), testSObject)
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "Contract Review", desc.Label)
	require.Len(t, desc.Fields, len(reviewFields)+1)
	assert.False(t, desc.Fields[0].Updateable)

	assert.NoError(t, CheckReviewObject(context.Background(), client, testSObject))
}

func TestSFClient_DescribeSObject_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "sobject not found", "errorCode": "NOT_FOUND"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	_, err := client.DescribeSObject(context.Background(), "NonExistent__c")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: describe")
}
