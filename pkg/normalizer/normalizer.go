// Package normalizer turns heterogeneous raw rows (manual form values,
// spreadsheet rows, AI-extracted candidates) into validated asset record
// drafts. It is pure: no side effects, no clock, no identity assignment.
package normalizer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"assettrack-api/internal/models"

	"gopkg.in/yaml.v3"
)

// Canonical field names the alias table resolves to.
const (
	FieldModel        = "model"
	FieldSerialNumber = "serialNumber"
	FieldSite         = "site"
	FieldCountry      = "country"
	FieldComments     = "comments"
	FieldStatus       = "status"
)

// Options configures a normalization pass.
type Options struct {
	// EnforceSitePattern rejects sites that do not start with an alphabetic
	// character followed by alphanumerics.
	EnforceSitePattern bool
	// Aliases maps folded header names to canonical fields. Nil uses the
	// built-in table.
	Aliases map[string]string
}

// RowError reports one rejected input row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result is the outcome of a batch pass: validated drafts plus the rows
// that were rejected. Rejections are never silently dropped.
type Result struct {
	Accepted []models.AssetRecord `json:"accepted"`
	Rejected []RowError           `json:"rejected"`
}

var sitePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// defaultAliases maps folded header spellings to canonical fields. Keys are
// produced by FoldKey, so "S/N", "s n" and "SN" all land on the same entry.
var defaultAliases = map[string]string{
	"model":        FieldModel,
	"assetmodel":   FieldModel,
	"product":      FieldModel,
	"productmodel": FieldModel,
	"devicemodel":  FieldModel,

	"serialnumber": FieldSerialNumber,
	"serial":       FieldSerialNumber,
	"serialno":     FieldSerialNumber,
	"sn":           FieldSerialNumber,
	"assetserial":  FieldSerialNumber,

	"site":     FieldSite,
	"location": FieldSite,
	"sitecode": FieldSite,
	"facility": FieldSite,

	"country": FieldCountry,

	"comments": FieldComments,
	"comment":  FieldComments,
	"notes":    FieldComments,
	"note":     FieldComments,
	"remarks":  FieldComments,

	"status":      FieldStatus,
	"rmastatus":   FieldStatus,
	"assetstatus": FieldStatus,
	"state":       FieldStatus,
}

// FoldKey lowercases a header name and strips every non-alphanumeric rune,
// so header casing, spacing and punctuation never matter.
func FoldKey(header string) string {
	var b strings.Builder
	for _, r := range header {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// NormalizeRow resolves one raw row to a draft record. The draft carries no
// identity and no createdAt; those are assigned at the repository boundary.
func NormalizeRow(row map[string]string, opts Options) (models.AssetRecord, error) {
	aliases := opts.Aliases
	if aliases == nil {
		aliases = defaultAliases
	}

	fields := map[string]string{}
	for header, value := range row {
		canonical, ok := aliases[FoldKey(header)]
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		fields[canonical] = trimmed
	}

	draft := models.AssetRecord{
		Model:        fields[FieldModel],
		SerialNumber: fields[FieldSerialNumber],
		Site:         fields[FieldSite],
		Country:      fields[FieldCountry],
		Comments:     fields[FieldComments],
		Status:       models.InferStatus(fields[FieldStatus]),
	}

	switch {
	case draft.Model == "":
		return models.AssetRecord{}, fmt.Errorf("model is required")
	case draft.SerialNumber == "":
		return models.AssetRecord{}, fmt.Errorf("serial number is required")
	case draft.Site == "":
		return models.AssetRecord{}, fmt.Errorf("site is required")
	}
	if opts.EnforceSitePattern && !sitePattern.MatchString(draft.Site) {
		return models.AssetRecord{}, fmt.Errorf("site %q must start with a letter followed by alphanumerics", draft.Site)
	}
	return draft, nil
}

// ValidatePatch applies the field rules NormalizeRow enforces on drafts to
// an update patch: required fields may not be cleared, and the site format
// rule applies when enabled. Country and comments may be cleared freely.
func ValidatePatch(patch models.AssetPatch, opts Options) error {
	if patch.Model != nil && strings.TrimSpace(*patch.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if patch.SerialNumber != nil && strings.TrimSpace(*patch.SerialNumber) == "" {
		return fmt.Errorf("serial number is required")
	}
	if patch.Site != nil {
		site := strings.TrimSpace(*patch.Site)
		if site == "" {
			return fmt.Errorf("site is required")
		}
		if opts.EnforceSitePattern && !sitePattern.MatchString(site) {
			return fmt.Errorf("site %q must start with a letter followed by alphanumerics", site)
		}
	}
	return nil
}

// NormalizeBatch runs every row through NormalizeRow, splitting accepted
// drafts from rejected rows. Row numbers in rejections are 1-based.
func NormalizeBatch(rows []map[string]string, opts Options) Result {
	res := Result{Accepted: []models.AssetRecord{}, Rejected: []RowError{}}
	for i, row := range rows {
		draft, err := NormalizeRow(row, opts)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		res.Accepted = append(res.Accepted, draft)
	}
	return res
}

// aliasFile is the YAML shape of an alias override file: canonical field
// name to a list of accepted header spellings.
type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadAliasFile reads a YAML alias table and merges it over the built-in
// defaults. Unknown canonical field names are an error.
func LoadAliasFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse alias file: %w", err)
	}

	merged := make(map[string]string, len(defaultAliases))
	for k, v := range defaultAliases {
		merged[k] = v
	}
	for canonical, variants := range file.Aliases {
		switch canonical {
		case FieldModel, FieldSerialNumber, FieldSite, FieldCountry, FieldComments, FieldStatus:
		default:
			return nil, fmt.Errorf("unknown canonical field %q in alias file", canonical)
		}
		for _, variant := range variants {
			merged[FoldKey(variant)] = canonical
		}
	}
	return merged, nil
}
