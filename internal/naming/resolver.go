// Package naming derives safe database identifiers from tenant-supplied
// upload file names.
//
// An upload file name carries two facts: the tenant's display name (in an
// arbitrary script, typically Korean) and the data date as six trailing
// digits. From those this package produces a canonical namespace id and a
// collision-resistant table id, both restricted to a conservative
// identifier alphabet so they can be embedded in DDL statements.
package naming

import (
	"fmt"
	"strings"
	"time"
)

// NamespaceFallback is used when a display name transliterates to nothing
// usable (e.g. a name written entirely in symbols).
const NamespaceFallback = "company"

// namespacePrefixLetter is prepended when a derived namespace id would
// start with a digit, which SQL identifiers must not.
const namespacePrefixLetter = "c"

// tableIDPrefix is the fixed prefix for provisioned data tables.
const tableIDPrefix = "sales_"

// Parsed is the result of splitting an upload file name.
type Parsed struct {
	CompanyName string // trimmed display-name prefix, original script preserved
	FileDate    string // six digits, YYMMDD
}

// ParseFileName splits an upload file name of the form
// "{company}{YYMMDD}.{ext}" into its company name and data date.
//
// The extension is mandatory and stripped at the last dot. The remaining
// base name must end in exactly six digits interpreted as YYMMDD with
// month 1..12 and day 1..31; per-month calendar validity is not checked.
// The prefix before the digits, trimmed, must be non-empty.
func ParseFileName(name string) (Parsed, error) {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return Parsed{}, fmt.Errorf("invalid file name %q: missing extension", name)
	}
	base := name[:dot]

	if len(base) < 6 {
		return Parsed{}, fmt.Errorf("invalid file name %q: expected trailing YYMMDD digits", name)
	}

	date := base[len(base)-6:]
	for _, c := range date {
		if c < '0' || c > '9' {
			return Parsed{}, fmt.Errorf("invalid file name %q: expected trailing YYMMDD digits", name)
		}
	}

	month := int(date[2]-'0')*10 + int(date[3]-'0')
	day := int(date[4]-'0')*10 + int(date[5]-'0')
	if month < 1 || month > 12 {
		return Parsed{}, fmt.Errorf("invalid file name %q: month %02d out of range", name, month)
	}
	if day < 1 || day > 31 {
		return Parsed{}, fmt.Errorf("invalid file name %q: day %02d out of range", name, day)
	}

	company := strings.TrimSpace(base[:len(base)-6])
	if company == "" {
		return Parsed{}, fmt.Errorf("invalid file name %q: empty company name", name)
	}

	return Parsed{CompanyName: company, FileDate: date}, nil
}

// NamespaceID derives the canonical namespace id for a tenant display name:
// transliterate, lowercase, keep only [a-z0-9], prefix a letter if the
// result starts with a digit, and substitute a fallback token if empty.
//
// The derivation is deterministic and idempotent for a given display name.
func NamespaceID(companyName string) string {
	t := strings.ToLower(Transliterate(companyName))

	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	id := b.String()
	if id == "" {
		return NamespaceFallback
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = namespacePrefixLetter + id
	}
	return id
}

// TableID derives a table id from the file date and the current local
// time at second resolution. The timestamp reduces, but does not
// eliminate, collisions between same-tenant uploads.
func TableID(fileDate string, now time.Time) string {
	return tableIDPrefix + fileDate + "_" + now.Format("150405")
}
