package query

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-review/internal/apperr"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat defaults to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", apperr.Invalid("format", "must be csv or json")
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

var exportHeader = []string{
	"Attribute ID", "Name", "Category", "Section", "Page",
	"Confidence", "Extracted Value", "Corrected Value",
}

type exportRow struct {
	Key             string  `json:"attributeKey"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Section         string  `json:"section"`
	Page            int     `json:"page,omitempty"`
	ConfidenceScore float64 `json:"confidenceScore"`
	ConfidenceLevel string  `json:"confidenceLevel,omitempty"`
	ExtractedValue  string  `json:"extractedValue"`
	CorrectedValue  *string `json:"correctedValue"`
}

// Export writes the selected version's fields to w.
func (s *Service) Export(ctx context.Context, documentID string, sel VersionSelector, format Format, w io.Writer) error {
	version, _, err := s.resolve(ctx, documentID, sel)
	if err != nil {
		return err
	}
	fields, err := s.store.ListFields(ctx, version.ID)
	if err != nil {
		return err
	}

	rows := make([]exportRow, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, exportRow{
			Key:             f.Key,
			Name:            f.Name,
			Category:        f.Category,
			Section:         f.Section,
			Page:            f.Page,
			ConfidenceScore: f.ConfidenceScore,
			ConfidenceLevel: string(f.ConfidenceLevel()),
			ExtractedValue:  f.FieldValue,
			CorrectedValue:  f.CorrectedValue,
		})
	}

	if format == FormatJSON {
		return eris.Wrap(json.NewEncoder(w).Encode(rows), "query: encode json export")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return eris.Wrap(err, "query: write csv header")
	}
	for _, r := range rows {
		page := ""
		if r.Page > 0 {
			page = strconv.Itoa(r.Page)
		}
		conf := ""
		if r.ConfidenceScore > 0 {
			conf = strconv.FormatFloat(r.ConfidenceScore, 'f', -1, 64)
		}
		corrected := ""
		if r.CorrectedValue != nil {
			corrected = *r.CorrectedValue
		}
		if err := cw.Write([]string{r.Key, r.Name, r.Category, r.Section, page, conf, r.ExtractedValue, corrected}); err != nil {
			return eris.Wrap(err, "query: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "query: flush csv")
}
