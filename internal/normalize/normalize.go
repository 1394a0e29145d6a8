// Package normalize maps a raw vendor property bag into a canonical
// Property plus the set of distress signals it exhibits, via a fixed,
// ordered decision table.
package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/heatline/core/internal/types"
	"github.com/heatline/core/internal/vendor"
)

// Result is the output of Normalize: a canonical Property (sans id/timestamps)
// plus the signals detected from this vendor record.
type Result struct {
	Property types.Property
	Signals  []types.DetectedSignal
}

// NormalizeCounty title-cases a county name and strips a trailing "County".
func NormalizeCounty(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, " County")
	s = strings.TrimSuffix(s, " county")
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) == 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// NormalizeAPN strips internal whitespace from a vendor APN string.
func NormalizeAPN(raw string) string {
	return strings.Join(strings.Fields(raw), "")
}

// Normalize maps a vendor record into a canonical Property and its
// detected distress signals. source tags the emitting ingest route and is
// carried onto every DistressEvent's fingerprint input.
func Normalize(rec vendor.Record, source string) Result {
	p := types.Property{OwnerFlags: map[string]any{}}

	if apn, ok := firstNonEmpty(rec, "APN"); ok {
		p.APN = NormalizeAPN(apn)
	}
	if county, ok := firstNonEmpty(rec, "County"); ok {
		p.County = NormalizeCounty(county)
	}
	if street, ok := firstNonEmpty(rec, "Address", "FullAddress"); ok {
		p.Street = street
	}
	if city, ok := firstNonEmpty(rec, "City"); ok {
		p.City = city
	}
	if state, ok := firstNonEmpty(rec, "State"); ok {
		p.State = state
	}
	if zip, ok := firstNonEmpty(rec, "ZipFive"); ok {
		p.Zip = zip
	}
	if owner, ok := firstNonEmpty(rec, "Owner", "Taxpayer"); ok {
		p.OwnerName = owner
	}
	if avm, ok := rec["AVM"]; ok {
		if n, ok := coerceInt64(avm); ok {
			p.EstimatedValue = &n
		}
	}
	if eq, ok := rec["EquityPercent"]; ok {
		if f, ok := coerceNumber(eq); ok {
			p.EquityPercent = &f
		}
	}
	if beds, ok := rec["Beds"]; ok {
		if n, ok := coerceInt(beds); ok {
			p.Bedrooms = &n
		}
	}
	if baths, ok := rec["Baths"]; ok {
		if f, ok := coerceNumber(baths); ok {
			p.Bathrooms = &f
		}
	}
	if sqft, ok := rec["SqFt"]; ok {
		if n, ok := coerceInt(sqft); ok {
			p.SqFt = &n
		}
	}
	if yb, ok := rec["YearBuilt"]; ok {
		if n, ok := coerceInt(yb); ok {
			p.YearBuilt = &n
		}
	}
	if ls, ok := rec["LotSize"]; ok {
		if n, ok := coerceInt(ls); ok {
			p.LotSize = &n
		}
	}
	if pt, ok := firstNonEmpty(rec, "PType"); ok {
		p.PropertyType = &pt
	}
	if lat, ok := rec["Lat"]; ok {
		p.OwnerFlags["lat"] = lat
	}
	if lng, ok := rec["Lng"]; ok {
		p.OwnerFlags["lng"] = lng
	}
	if coerceBool(rec["AbsenteeOwner"]) {
		p.OwnerFlags["absentee"] = true
	}
	if coerceBool(rec["SiteVacant"]) || coerceBool(rec["MailVacant"]) {
		p.OwnerFlags["vacant"] = true
	}
	if coerceBool(rec["OwnerCorporate"]) {
		p.OwnerFlags["corporate"] = true
	}
	if coerceBool(rec["OutOfStateOwner"]) {
		p.OwnerFlags["out_of_state"] = true
	}
	if coerceBool(rec["Inherited"]) {
		p.OwnerFlags["inherited"] = true
	}
	if coerceBool(rec["OwnerElderly"]) {
		p.OwnerFlags["elderly"] = true
	}

	signals := detectSignals(rec)
	for i := range signals {
		signals[i].Source = source
		signals[i].RawData = mustRawJSON(rec)
	}

	return Result{Property: p, Signals: signals}
}

// detectSignals runs the fixed, ordered decision table.
// All matching triggers fire — this is not a first-match lookup.
func detectSignals(rec map[string]any) []types.DetectedSignal {
	var out []types.DetectedSignal
	add := func(et types.EventType, severity int, days int) {
		out = append(out, types.DetectedSignal{EventType: et, Severity: severity, DaysSinceEvent: days})
	}

	fired := false

	if coerceBool(rec["Deceased"]) {
		add(types.EventProbate, 9, daysSince(rec, "DeceasedDate", 30))
		fired = true
	}

	inForeclosure := coerceBool(rec["InPreforeclosure"]) || coerceBool(rec["InForeclosure"])
	if inForeclosure {
		defaultAmount, _ := coerceNumber(rec["DefaultAmount"])
		if defaultAmount > 50000 {
			add(types.EventPreForeclosure, 9, daysSince(rec, "ForeclosureRecordingDate", 30))
		} else {
			add(types.EventPreForeclosure, 7, daysSince(rec, "ForeclosureRecordingDate", 30))
		}
		fired = true
	}

	taxDelinquent := coerceBool(rec["TaxDelinquent"])
	taxLienAlreadyFired := false
	if taxDelinquent {
		delinquentAmount, _ := coerceNumber(rec["DelinquentAmount"])
		if delinquentAmount > 10000 {
			add(types.EventTaxLien, 8, daysSince(rec, "TaxDelinquencyDate", 30))
		} else {
			add(types.EventTaxLien, 6, daysSince(rec, "TaxDelinquencyDate", 30))
		}
		fired = true
		taxLienAlreadyFired = true
	}

	if coerceBool(rec["Bankruptcy"]) {
		add(types.EventBankruptcy, 8, daysSince(rec, "BankruptcyFilingDate", 60))
		fired = true
	}

	if coerceBool(rec["Divorce"]) {
		add(types.EventDivorce, 7, daysSince(rec, "DivorceFilingDate", 60))
		fired = true
	}

	if coerceBool(rec["SiteVacant"]) || coerceBool(rec["MailVacant"]) {
		add(types.EventVacant, 5, daysSince(rec, "VacancyObservedDate", 60))
		fired = true
	}

	if coerceBool(rec["AbsenteeOwner"]) {
		add(types.EventAbsentee, 4, daysSince(rec, "AbsenteeSinceDate", 90))
		fired = true
	}

	if coerceBool(rec["HasOpenLiens"]) && !taxLienAlreadyFired {
		add(types.EventTaxLien, 5, daysSince(rec, "LienRecordingDate", 90))
		fired = true
	}

	if !fired {
		add(types.EventAbsentee, 3, 180)
	}

	return out
}

// daysSince derives days-since-event from a vendor date field, clamped >=1,
// falling back to defaultDays when the field is absent or unparseable.
func daysSince(rec map[string]any, field string, defaultDays int) int {
	t, ok := coerceDate(rec[field])
	if !ok {
		return defaultDays
	}
	days := int(time.Since(t).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}

func mustRawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
