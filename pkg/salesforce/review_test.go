package salesforce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReviewRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 5, 0, 0, 0, time.FixedZone("EST", -5*3600))
	rec, err := NewReviewRecord("doc-001", "ver-13", "rs-1", "jane",
		map[string]string{"attr-009": "Acme Corporation", "attr-001": ""}, 1, at)
	require.NoError(t, err)

	assert.Equal(t, `{"attr-001":"","attr-009":"Acme Corporation"}`, rec.Corrections)
	assert.Equal(t, "2026-03-01T10:00:00Z", rec.ReviewedAt)

	fields := rec.Fields()
	assert.Len(t, fields, len(reviewFields))
	assert.Equal(t, "ver-13", fields[FieldVersionID])
	assert.Equal(t, 1, fields[FieldUpdatedCount])
}

func TestCreateReviewRecord(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var capturedObject string
		mc := &mockClient{
			insertOneFn: func(_ context.Context, sObject string, _ map[string]any) (string, error) {
				capturedObject = sObject
				return "a01NEW", nil
			},
		}
		id, err := CreateReviewRecord(context.Background(), mc, "Contract_Review__c", ReviewRecord{DocumentID: "doc-1"})
		require.NoError(t, err)
		assert.Equal(t, "a01NEW", id)
		assert.Equal(t, "Contract_Review__c", capturedObject)
	})

	t.Run("missing sobject", func(t *testing.T) {
		_, err := CreateReviewRecord(context.Background(), &mockClient{}, "", ReviewRecord{DocumentID: "doc-1"})
		assert.ErrorContains(t, err, "sobject is required")
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := CreateReviewRecord(context.Background(), &mockClient{}, "Contract_Review__c", ReviewRecord{})
		assert.ErrorContains(t, err, "document id is required")
	})

	t.Run("propagates error", func(t *testing.T) {
		mc := &mockClient{
			insertOneFn: func(context.Context, string, map[string]any) (string, error) {
				return "", errors.New("api error")
			},
		}
		_, err := CreateReviewRecord(context.Background(), mc, "Contract_Review__c", ReviewRecord{DocumentID: "doc-1"})
		assert.ErrorContains(t, err, "create review for document doc-1")
	})
}

func TestFindReviewRecords_SOQLInjectionPrevented(t *testing.T) {
	var capturedSOQL string
	mc := &mockClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			capturedSOQL = soql
			*out.(*[]ReviewRecord) = []ReviewRecord{}
			return nil
		},
	}

	_, _ = FindReviewRecords(context.Background(), mc, "Contract_Review__c", "doc'; DELETE --")
	assert.Contains(t, capturedSOQL, "doc\\'; DELETE --")
	assert.NotContains(t, capturedSOQL, "doc'; DELETE")
	assert.Contains(t, capturedSOQL, "ORDER BY Reviewed_At__c DESC")
}

func TestEscapeSoql(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"doc-1", "doc-1"},
		{"o'brien", `o\'brien`},
		{`doc\`, `doc\\`},
		{`doc\'`, `doc\\\'`},
		{`a\'; DELETE --`, `a\\\'; DELETE --`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeSoql(tt.in))
		})
	}
}

func TestFindReviewRecords_TrailingBackslashStaysQuoted(t *testing.T) {
	var capturedSOQL string
	mc := &mockClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			capturedSOQL = soql
			*out.(*[]ReviewRecord) = []ReviewRecord{}
			return nil
		},
	}

	_, _ = FindReviewRecords(context.Background(), mc, "Contract_Review__c", `doc\' OR Name != '`)
	assert.Contains(t, capturedSOQL, `'doc\\\' OR Name != \''`)
}

func TestFindReviewRecords_ErrorPropagation(t *testing.T) {
	mc := &mockClient{
		queryFn: func(context.Context, string, any) error { return errors.New("timeout") },
	}
	recs, err := FindReviewRecords(context.Background(), mc, "Contract_Review__c", "doc-1")
	assert.Nil(t, recs)
	assert.ErrorContains(t, err, "find reviews for document doc-1")
}

func TestCheckReviewObject_MissingFields(t *testing.T) {
	mc := &mockClient{
		describeSObjectFn: func(_ context.Context, name string) (*SObjectDescription, error) {
			return &SObjectDescription{Name: name, Fields: []SObjectField{
				{Name: FieldDocumentID, Createable: true},
				{Name: FieldReviewer, Createable: false},
			}}, nil
		},
	}
	err := CheckReviewObject(context.Background(), mc, "Contract_Review__c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), FieldReviewer)
	assert.Contains(t, err.Error(), FieldCorrections)
	assert.NotContains(t, err.Error(), FieldDocumentID+",")
}
