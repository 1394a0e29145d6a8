package normalize

import (
	"time"
)

// Facts are the typed, optional vendor fields the predictive scorer
// consumes beyond the canonical Property row. Extracted here so the raw
// bag never travels past C1; nil means the vendor didn't supply it.
type Facts struct {
	OwnerAge         *int
	OwnershipYears   *float64
	LoanBalance      *float64
	LastSaleDate     *time.Time
	LastSalePrice    *float64
	DelinquentAmount *float64
	TaxAssessedValue *float64
	DefaultAmount    *float64
	CompRatio        *float64
	ForeclosureStage string // vendor stage string, "" when absent
}

// ExtractFacts pulls the predictive-model inputs out of a vendor record.
func ExtractFacts(rec map[string]any, asOf time.Time) Facts {
	var f Facts

	if n, ok := coerceInt(rec["OwnerAge"]); ok && n > 0 {
		f.OwnerAge = &n
	}
	if v, ok := coerceNumber(rec["LoanBalance"]); ok {
		f.LoanBalance = &v
	} else if v, ok := coerceNumber(rec["TotalLoanBalance"]); ok {
		f.LoanBalance = &v
	}
	if t, ok := coerceDate(rec["LastSaleDate"]); ok {
		f.LastSaleDate = &t
		years := asOf.Sub(t).Hours() / 24 / 365.25
		if years > 0 {
			f.OwnershipYears = &years
		}
	}
	if v, ok := coerceNumber(rec["LastSalePrice"]); ok {
		f.LastSalePrice = &v
	}
	if v, ok := coerceNumber(rec["DelinquentAmount"]); ok {
		f.DelinquentAmount = &v
	}
	if v, ok := coerceNumber(rec["TaxAssessedValue"]); ok {
		f.TaxAssessedValue = &v
	}
	if v, ok := coerceNumber(rec["DefaultAmount"]); ok {
		f.DefaultAmount = &v
	}
	if v, ok := coerceNumber(rec["CompRatio"]); ok {
		f.CompRatio = &v
	}
	if s, ok := coerceString(rec["ForeclosureStage"]); ok {
		f.ForeclosureStage = s
	}
	return f
}

func coerceDate(v any) (time.Time, bool) {
	s, ok := coerceString(v)
	if !ok {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// defaultSeverities assigns a severity to webhook-delivered signals,
// which arrive pre-classified (a distress_type string) without the
// vendor indicator fields the decision table keys on. Values track the
// table's mid-band rows.
var defaultSeverities = map[string]int{
	"probate":         9,
	"pre_foreclosure": 7,
	"tax_lien":        6,
	"code_violation":  5,
	"vacant":          5,
	"divorce":         7,
	"bankruptcy":      8,
	"fsbo":            4,
	"absentee":        4,
	"inherited":       6,
	"water_shutoff":   8,
}

// DefaultSeverity returns the severity for a pre-classified distress
// type, or (0, false) for an unrecognized one.
func DefaultSeverity(distressType string) (int, bool) {
	s, ok := defaultSeverities[distressType]
	return s, ok
}
