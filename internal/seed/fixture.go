// Package seed loads contract fixtures from YAML into a store. It stands in
// for the ingestion pipeline in development and tests.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/store"
)

// Fixture is the top-level YAML document.
type Fixture struct {
	Documents []Document `yaml:"documents"`
}

// Document is one contract with its versions.
type Document struct {
	ID         string               `yaml:"id"`
	Title      string               `yaml:"title"`
	Status     model.DocumentStatus `yaml:"status"`
	UploadedAt time.Time            `yaml:"uploaded_at"`
	Versions   []Version            `yaml:"versions"`
}

// Version is one snapshot. ID defaults to "<document>-v<number>".
type Version struct {
	ID         string    `yaml:"id"`
	Number     int       `yaml:"number"`
	Latest     bool      `yaml:"latest"`
	Status     string    `yaml:"status"`
	StorageRef string    `yaml:"storage_ref"`
	CreatedBy  string    `yaml:"created_by"`
	Notes      string    `yaml:"notes"`
	CreatedAt  time.Time `yaml:"created_at"`
	Fields     []Field   `yaml:"fields"`
}

// Field is one extracted value.
type Field struct {
	Key             string             `yaml:"key"`
	Name            string             `yaml:"name"`
	Category        string             `yaml:"category"`
	Section         string             `yaml:"section"`
	Page            int                `yaml:"page"`
	Value           string             `yaml:"value"`
	Corrected       *string            `yaml:"corrected"`
	Confidence      float64            `yaml:"confidence"`
	HighlightedText string             `yaml:"highlighted_text"`
	BoundingBox     *model.BoundingBox `yaml:"bounding_box"`
}

// Load reads and validates a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read fixture %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates fixture YAML.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperr.Invalid("fixture", err.Error())
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (v Version) id(documentID string) string {
	if v.ID != "" {
		return v.ID
	}
	return fmt.Sprintf("%s-v%d", documentID, v.Number)
}

// Validate enforces the invariants ingestion guarantees: contiguous unique
// version numbers from 1, exactly one latest version, unique keys within a
// version and normalized bounding boxes.
func (f *Fixture) Validate() error {
	if len(f.Documents) == 0 {
		return apperr.Invalid("documents", "fixture has no documents")
	}
	docIDs := make(map[string]bool)
	versionIDs := make(map[string]bool)
	for _, d := range f.Documents {
		if d.ID == "" {
			return apperr.Invalid("documents.id", "is required")
		}
		if docIDs[d.ID] {
			return apperr.Invalid("documents.id", "duplicate document "+d.ID)
		}
		docIDs[d.ID] = true
		if d.Status != "" && !model.ValidDocumentStatus(d.Status) {
			return apperr.Invalid(d.ID+".status", "unknown status "+string(d.Status))
		}
		if len(d.Versions) == 0 {
			return apperr.Invalid(d.ID+".versions", "document has no versions")
		}

		numbers := make(map[int]bool)
		latest := 0
		for _, v := range d.Versions {
			if v.Number < 1 || v.Number > len(d.Versions) || numbers[v.Number] {
				return apperr.Invalid(d.ID+".versions", fmt.Sprintf("version numbers must run 1..%d without gaps or repeats, got %d", len(d.Versions), v.Number))
			}
			numbers[v.Number] = true
			if v.Latest {
				latest++
			}
			vid := v.id(d.ID)
			if versionIDs[vid] {
				return apperr.Invalid(d.ID+".versions", "duplicate version id "+vid)
			}
			versionIDs[vid] = true

			if err := validateFields(vid, v.Fields); err != nil {
				return err
			}
		}
		if latest != 1 {
			return apperr.Invalid(d.ID+".versions", fmt.Sprintf("exactly one latest version required, got %d", latest))
		}
	}
	return nil
}

func validateFields(versionID string, fields []Field) error {
	keys := make(map[string]bool, len(fields))
	for _, fd := range fields {
		if fd.Key == "" {
			return apperr.Invalid(versionID+".fields.key", "is required")
		}
		if keys[fd.Key] {
			return apperr.Invalid(versionID+".fields", "duplicate key "+fd.Key)
		}
		keys[fd.Key] = true
		if fd.Confidence < 0 || fd.Confidence > 100 {
			return apperr.Invalid(versionID+"."+fd.Key+".confidence", "must be within 0-100")
		}
		if fd.BoundingBox != nil && !fd.BoundingBox.Valid() {
			return apperr.Invalid(versionID+"."+fd.Key+".bounding_box", "must have a page and coordinates within [0,1]")
		}
	}
	return nil
}

// Bundle converts d into a store bundle. Zero timestamps default to now.
func (d Document) Bundle(now time.Time) store.DocumentBundle {
	uploaded := d.UploadedAt
	if uploaded.IsZero() {
		uploaded = now
	}
	b := store.DocumentBundle{
		Document: model.Document{
			ID:         d.ID,
			Title:      d.Title,
			Status:     d.Status,
			UploadedAt: uploaded,
		},
	}
	for _, v := range d.Versions {
		vid := v.id(d.ID)
		created := v.CreatedAt
		if created.IsZero() {
			created = uploaded
		}
		b.Versions = append(b.Versions, model.Version{
			ID:            vid,
			DocumentID:    d.ID,
			VersionNumber: v.Number,
			IsLatest:      v.Latest,
			Status:        v.Status,
			StorageRef:    v.StorageRef,
			CreatedBy:     v.CreatedBy,
			Notes:         v.Notes,
			CreatedAt:     created,
		})
		for _, fd := range v.Fields {
			b.Fields = append(b.Fields, model.ExtractedField{
				ID:              model.RowID(fd.Key, vid),
				Key:             fd.Key,
				DocumentID:      d.ID,
				VersionID:       vid,
				Name:            fd.Name,
				Category:        fd.Category,
				Section:         fd.Section,
				Page:            fd.Page,
				FieldValue:      fd.Value,
				CorrectedValue:  fd.Corrected,
				ConfidenceScore: fd.Confidence,
				HighlightedText: fd.HighlightedText,
				BoundingBox:     fd.BoundingBox,
				ExtractedAt:     created,
			})
		}
	}
	return b
}

// Importer persists one bundle.
type Importer interface {
	ImportDocument(ctx context.Context, bundle store.DocumentBundle) error
}

// Import writes every document in f and returns how many were imported.
func Import(ctx context.Context, imp Importer, f *Fixture) (int, error) {
	now := time.Now().UTC()
	for i, d := range f.Documents {
		b := d.Bundle(now)
		if err := imp.ImportDocument(ctx, b); err != nil {
			return i, eris.Wrapf(err, "seed: import %s", d.ID)
		}
		zap.L().Info("seed: imported document",
			zap.String("component", "seed"),
			zap.String("document_id", d.ID),
			zap.Int("versions", len(b.Versions)),
			zap.Int("fields", len(b.Fields)),
		)
	}
	return len(f.Documents), nil
}
