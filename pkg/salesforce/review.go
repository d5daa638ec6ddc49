package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Custom fields on the review sObject.
const (
	FieldDocumentID   = "Document_Id__c"
	FieldVersionID    = "Version_Id__c"
	FieldReviewID     = "Review_Session_Id__c"
	FieldReviewer     = "Reviewer__c"
	FieldCorrections  = "Corrections__c"
	FieldUpdatedCount = "Updated_Count__c"
	FieldReviewedAt   = "Reviewed_At__c"
)

var reviewFields = []string{
	FieldDocumentID, FieldVersionID, FieldReviewID, FieldReviewer,
	FieldCorrections, FieldUpdatedCount, FieldReviewedAt,
}

// ReviewRecord is a committed contract review as written to Salesforce.
type ReviewRecord struct {
	ID           string `json:"Id" salesforce:"Id"`
	DocumentID   string `json:"Document_Id__c" salesforce:"Document_Id__c"`
	VersionID    string `json:"Version_Id__c" salesforce:"Version_Id__c"`
	ReviewID     string `json:"Review_Session_Id__c" salesforce:"Review_Session_Id__c"`
	Reviewer     string `json:"Reviewer__c" salesforce:"Reviewer__c"`
	Corrections  string `json:"Corrections__c" salesforce:"Corrections__c"`
	UpdatedCount int    `json:"Updated_Count__c" salesforce:"Updated_Count__c"`
	ReviewedAt   string `json:"Reviewed_At__c" salesforce:"Reviewed_At__c"`
}

// NewReviewRecord builds a record, encoding corrections as a JSON object.
func NewReviewRecord(documentID, versionID, reviewID, reviewer string, corrections map[string]string, updated int, at time.Time) (ReviewRecord, error) {
	raw, err := json.Marshal(corrections)
	if err != nil {
		return ReviewRecord{}, eris.Wrap(err, "sf: encode corrections")
	}
	return ReviewRecord{
		DocumentID:   documentID,
		VersionID:    versionID,
		ReviewID:     reviewID,
		Reviewer:     reviewer,
		Corrections:  string(raw),
		UpdatedCount: updated,
		ReviewedAt:   at.UTC().Format(time.RFC3339),
	}, nil
}

// Fields returns the record as an insertable field map.
func (r ReviewRecord) Fields() map[string]any {
	return map[string]any{
		FieldDocumentID:   r.DocumentID,
		FieldVersionID:    r.VersionID,
		FieldReviewID:     r.ReviewID,
		FieldReviewer:     r.Reviewer,
		FieldCorrections:  r.Corrections,
		FieldUpdatedCount: r.UpdatedCount,
		FieldReviewedAt:   r.ReviewedAt,
	}
}

// CreateReviewRecord inserts rec into sObject and returns the new Salesforce ID.
func CreateReviewRecord(ctx context.Context, c Client, sObject string, rec ReviewRecord) (string, error) {
	if sObject == "" {
		return "", eris.New("sf: review sobject is required")
	}
	if rec.DocumentID == "" {
		return "", eris.New("sf: review document id is required")
	}
	id, err := c.InsertOne(ctx, sObject, rec.Fields())
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: create review for document %s", rec.DocumentID))
	}
	return id, nil
}

// FindReviewRecords lists the review records written for a document, newest
// first.
func FindReviewRecords(ctx context.Context, c Client, sObject, documentID string) ([]ReviewRecord, error) {
	soql := fmt.Sprintf(
		"SELECT Id, %s FROM %s WHERE %s = '%s' ORDER BY %s DESC",
		strings.Join(reviewFields, ", "),
		sObject, FieldDocumentID, escapeSoql(documentID), FieldReviewedAt,
	)

	var records []ReviewRecord
	if err := c.Query(ctx, soql, &records); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find reviews for document %s", documentID))
	}
	return records, nil
}

// CheckReviewObject verifies that sObject exposes every review field as
// createable.
func CheckReviewObject(ctx context.Context, c Client, sObject string) error {
	desc, err := c.DescribeSObject(ctx, sObject)
	if err != nil {
		return err
	}
	var missing []string
	for _, name := range reviewFields {
		f := desc.Field(name)
		if f == nil || !f.Createable {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("sf: %s missing createable fields: %s", sObject, strings.Join(missing, ", "))
	}
	return nil
}

// soqlEscaper escapes backslashes and single quotes in SOQL string literals.
// Escaping the backslash keeps an input ending in \' from closing the literal.
var soqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeSoql(s string) string {
	return soqlEscaper.Replace(s)
}
