package seed

import (
	"fmt"
	"time"

	"github.com/sells-group/contract-review/internal/model"
)

// Sample builds doc-001, a thirteen-version services agreement used by the
// demo and by `seed --sample`. Liability Cap carries a correction on the
// latest version, Payment Terms changes once in v2 and Exclusivity is
// dropped after v3.
func Sample() *Fixture {
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	doc := Document{
		ID:         "doc-001",
		Title:      "Master Services Agreement - Acme Corp",
		UploadedAt: base,
	}
	corrected := func(s string) *string { return &s }

	for n := 1; n <= 13; n++ {
		terms := "Net 45"
		if n == 1 {
			terms = "Net 30"
		}
		v := Version{
			Number:     n,
			Latest:     n == 13,
			Status:     "Extracted",
			StorageRef: fmt.Sprintf("contracts/doc-001/v%d.pdf", n),
			CreatedBy:  "ingestion",
			CreatedAt:  base.Add(time.Duration(n-1) * 24 * time.Hour),
			Fields: []Field{
				{Key: "attr-001", Name: "Effective Date", Category: "Dates", Section: "1. Term", Page: 1, Value: "January 15, 2024", Confidence: 94,
					BoundingBox: &model.BoundingBox{Page: 1, X: 0.12, Y: 0.21, Width: 0.3, Height: 0.03}},
				{Key: "attr-004", Name: "Payment Terms", Category: "Financial", Section: "4. Fees", Page: 3, Value: terms, Confidence: 81},
				{Key: "attr-007", Name: "Liability Cap", Category: "Risk", Section: "9. Liability", Page: 7, Value: "$500,000", Confidence: 67},
				{Key: "attr-009", Name: "Counterparty", Category: "Parties", Section: "Preamble", Page: 1, Value: "Acme Corp", Confidence: 98},
			},
		}
		if n == 13 {
			v.Fields[2].Corrected = corrected("$700,000")
			v.Fields[3].Corrected = corrected("Acme Corporation")
		}
		if n <= 3 {
			v.Fields = append(v.Fields, Field{Key: "attr-011", Name: "Exclusivity", Category: "Commercial", Section: "6. Scope", Page: 4, Value: "Exclusive", Confidence: 42})
		}
		doc.Versions = append(doc.Versions, v)
	}
	return &Fixture{Documents: []Document{doc}}
}
