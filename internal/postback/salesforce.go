package postback

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"

	sfpkg "github.com/sells-group/contract-review/pkg/salesforce"
)

// SalesforceNotifier records each committed review as a Salesforce record.
type SalesforceNotifier struct {
	client  sfpkg.Client
	sobject string
}

// NewSalesforceNotifier creates a notifier writing to sobject.
func NewSalesforceNotifier(client sfpkg.Client, sobject string) *SalesforceNotifier {
	return &SalesforceNotifier{client: client, sobject: sobject}
}

// Target implements Notifier.
func (n *SalesforceNotifier) Target() string { return "salesforce" }

// Notify implements Notifier.
func (n *SalesforceNotifier) Notify(ctx context.Context, ev Event) (*Result, error) {
	endpoint := "salesforce://" + n.sobject
	rec, err := sfpkg.NewReviewRecord(ev.DocumentID, ev.VersionID, ev.ReviewSessionID,
		ev.ReviewedBy, ev.Corrections(), len(ev.UpdatedKeys), ev.Timestamp)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(rec.Fields())
	if err != nil {
		return nil, eris.Wrap(err, "salesforce: marshal record")
	}

	res := &Result{Endpoint: endpoint, Payload: payload, Attempts: 1}
	id, err := sfpkg.CreateReviewRecord(ctx, n.client, n.sobject, rec)
	if err != nil {
		return res, &NotifierError{Endpoint: endpoint, Err: err}
	}
	res.StatusCode = http.StatusCreated
	res.ResponseBody = id
	return res, nil
}
