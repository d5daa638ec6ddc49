// Package query is the read side of the review core: attribute views
// decorated with change attribution, document listings, exports and the
// audit trail.
package query

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/attribution"
	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/store"
)

// Reader is the subset of store.Store the query surface reads from.
type Reader interface {
	ListDocuments(ctx context.Context, filter store.DocumentFilter) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListVersions(ctx context.Context, documentID string) ([]model.Version, error)
	GetLatestVersion(ctx context.Context, documentID string) (*model.Version, error)
	GetVersionByNumber(ctx context.Context, documentID string, number int) (*model.Version, error)
	ListFields(ctx context.Context, versionID string) ([]model.ExtractedField, error)
	ListReviewedFields(ctx context.Context, documentID string) ([]model.ReviewedField, error)
}

// Attributor computes key -> last changed version up to a bound.
type Attributor interface {
	Compute(ctx context.Context, documentID string, upTo int) (map[string]int, error)
}

// Service answers read queries.
type Service struct {
	store Reader
	attr  Attributor
}

// NewService creates a Service.
func NewService(st Reader, attr Attributor) *Service {
	return &Service{store: st, attr: attr}
}

// VersionSelector picks either the latest version or a version number.
type VersionSelector struct {
	Number int
}

// Latest selects the document's current latest version.
var Latest = VersionSelector{}

// IsLatest reports whether the selector resolves to the latest version.
func (s VersionSelector) IsLatest() bool { return s.Number == 0 }

func (s VersionSelector) String() string {
	if s.IsLatest() {
		return "latest"
	}
	return strconv.Itoa(s.Number)
}

// ParseVersion parses "latest" (or "") or a positive version number.
func ParseVersion(raw string) (VersionSelector, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "latest" {
		return Latest, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return VersionSelector{}, apperr.Invalid("version", "must be \"latest\" or a positive number")
	}
	return VersionSelector{Number: n}, nil
}

// Attribute is one field row as the review UI sees it.
type Attribute struct {
	model.ExtractedField
	ConfidenceLevel        model.ConfidenceLevel `json:"confidenceLevel,omitempty"`
	EffectiveValue         string                `json:"effectiveValue"`
	ChangedInVersionNumber int                   `json:"changedInVersionNumber"`
	LatestVersionNumber    int                   `json:"latestVersionNumber"`
}

// AttributesView is the response for one version's attributes.
type AttributesView struct {
	DocumentID             string        `json:"documentId"`
	EffectiveVersionNumber int           `json:"effectiveVersionNumber"`
	LatestVersionNumber    int           `json:"latestVersionNumber"`
	Version                model.Version `json:"version"`
	Attributes             []Attribute   `json:"attributes"`
}

// Attributes returns the selected version's fields. Attribution is always
// computed up to the latest version, whichever version is being viewed.
func (s *Service) Attributes(ctx context.Context, documentID string, sel VersionSelector) (*AttributesView, error) {
	version, latest, err := s.resolve(ctx, documentID, sel)
	if err != nil {
		return nil, err
	}

	changed, err := s.attr.Compute(ctx, documentID, latest.VersionNumber)
	if err != nil {
		return nil, eris.Wrap(err, "query: attribution")
	}
	fields, err := s.store.ListFields(ctx, version.ID)
	if err != nil {
		return nil, err
	}

	view := &AttributesView{
		DocumentID:             documentID,
		EffectiveVersionNumber: version.VersionNumber,
		LatestVersionNumber:    latest.VersionNumber,
		Version:                *version,
		Attributes:             make([]Attribute, 0, len(fields)),
	}
	for _, f := range fields {
		view.Attributes = append(view.Attributes, Attribute{
			ExtractedField:         f,
			ConfidenceLevel:        f.ConfidenceLevel(),
			EffectiveValue:         f.EffectiveValue(),
			ChangedInVersionNumber: attribution.ChangedIn(changed, f.Key),
			LatestVersionNumber:    latest.VersionNumber,
		})
	}

	zap.L().Debug("query: attributes",
		zap.String("component", "query"),
		zap.String("document_id", documentID),
		zap.String("version_id", version.ID),
		zap.Int("count", len(view.Attributes)),
	)
	return view, nil
}

// resolve returns the selected version and the current latest version.
func (s *Service) resolve(ctx context.Context, documentID string, sel VersionSelector) (*model.Version, *model.Version, error) {
	latest, err := s.store.GetLatestVersion(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if sel.IsLatest() || sel.Number == latest.VersionNumber {
		return latest, latest, nil
	}
	version, err := s.store.GetVersionByNumber(ctx, documentID, sel.Number)
	if err != nil {
		return nil, nil, err
	}
	return version, latest, nil
}

// DocumentView is a document with its versions, newest first.
type DocumentView struct {
	model.Document
	Versions []model.Version `json:"versions"`
}

// Document returns one document and its versions.
func (s *Service) Document(ctx context.Context, id string) (*DocumentView, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	if versions == nil {
		versions = []model.Version{}
	}
	return &DocumentView{Document: *doc, Versions: versions}, nil
}

// Documents lists documents, most recently uploaded first.
func (s *Service) Documents(ctx context.Context, filter store.DocumentFilter) ([]model.Document, error) {
	if filter.Status != "" && !model.ValidDocumentStatus(filter.Status) {
		return nil, apperr.Invalid("status", "unknown document status "+string(filter.Status))
	}
	docs, err := s.store.ListDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}

// Versions lists a document's versions, newest first.
func (s *Service) Versions(ctx context.Context, id string) ([]model.Version, error) {
	view, err := s.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	return view.Versions, nil
}
