package catalogue

import (
	"fmt"
	"math"
	"strings"

	"metaboqc/adapters/datareadiness/coercer"
	"metaboqc/domain/compound"
	"metaboqc/domain/core"
)

var headerAliases = map[string]string{
	"name":           "name",
	"compound":       "name",
	"compound name":  "name",
	"formula":        "formula",
	"adduct":         "adduct",
	"mz":             "mz",
	"m/z":            "mz",
	"rt":             "rt",
	"retention time": "rt",
	"retention_time": "rt",
	"ionisation":     "ionisation",
	"ionization":     "ionisation",
	"polarity":       "ionisation",
	"source":         "source",
}

// FromRows builds compounds from an imported sheet. Headers are matched
// case-insensitively; name and m/z are required.
func FromRows(headers []string, rows [][]string) ([]compound.Compound, error) {
	idx := map[string]int{}
	for i, h := range headers {
		if key, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := idx[key]; !dup {
				idx[key] = i
			}
		}
	}
	for _, req := range []string{"name", "mz"} {
		if _, ok := idx[req]; !ok {
			return nil, core.NewMissingColumnError("compounds", req)
		}
	}

	tc := coercer.NewTypeCoercer(coercer.DefaultCoercionConfig())
	cell := func(row []string, key string) string {
		i, ok := idx[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]compound.Compound, 0, len(rows))
	for r, row := range rows {
		name := cell(row, "name")
		if name == "" {
			continue
		}
		mz, ok := tc.ParseFloat(cell(row, "mz"))
		if !ok {
			return nil, core.NewSchemaError("mz", fmt.Sprintf("row %d: cannot read %q", r+2, cell(row, "mz")))
		}
		rt := math.NaN()
		if s := cell(row, "rt"); !tc.IsMissing(s) {
			if rt, ok = tc.ParseFloat(s); !ok {
				return nil, core.NewSchemaError("retention time", fmt.Sprintf("row %d: cannot read %q", r+2, s))
			}
		}
		ion, err := ParseIonisation(cell(row, "ionisation"))
		if err != nil {
			return nil, core.NewSchemaError("ionisation", fmt.Sprintf("row %d: %v", r+2, err))
		}
		out = append(out, compound.Compound{
			Name:          name,
			Formula:       cell(row, "formula"),
			Adduct:        cell(row, "adduct"),
			MZ:            mz,
			RetentionTime: rt,
			Ionisation:    ion,
			Source:        cell(row, "source"),
		})
	}
	return out, nil
}

// ParseIonisation accepts the polarity spellings found in compound libraries.
func ParseIonisation(s string) (compound.Ionisation, error) {
	switch strings.ToUpper(s) {
	case "":
		return compound.AnyMode, nil
	case "POS", "POSITIVE", "+", "ESI+":
		return compound.Positive, nil
	case "NEG", "NEGATIVE", "-", "ESI-":
		return compound.Negative, nil
	}
	return "", fmt.Errorf("unknown ionisation %q", s)
}
