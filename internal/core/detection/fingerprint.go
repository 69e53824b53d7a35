package detection

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Fingerprinter hashes entities over their non-volatile fields.
type Fingerprinter struct {
	volatile map[string]struct{}
}

// NewFingerprinter returns a Fingerprinter ignoring the given field names.
func NewFingerprinter(volatileFields []string) Fingerprinter {
	v := make(map[string]struct{}, len(volatileFields))
	for _, f := range volatileFields {
		v[f] = struct{}{}
	}
	return Fingerprinter{volatile: v}
}

// IsVolatile reports whether name is excluded from fingerprints and diffs.
func (f Fingerprinter) IsVolatile(name string) bool {
	_, ok := f.volatile[name]
	return ok
}

// Canonical returns the deterministic serialization the hash is computed over.
// The code and every stable field name and value, in name order, are written
// as "<len>:<bytes>" so no value can imitate a field boundary.
func (f Fingerprinter) Canonical(e Entity) []byte {
	var b strings.Builder
	writeFramed(&b, e.Code)
	for _, name := range e.FieldNames() {
		if f.IsVolatile(name) {
			continue
		}
		writeFramed(&b, name)
		writeFramed(&b, e.Fields[name])
	}
	return []byte(b.String())
}

func writeFramed(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// Hash returns the hex SHA3-256 of the canonical serialization.
func (f Fingerprinter) Hash(e Entity) string {
	h := sha3.New256()
	h.Write(f.Canonical(e))
	return hex.EncodeToString(h.Sum(nil))
}

// Diff returns the sorted names of stable fields whose value differs between
// before and after. A field present on one side only counts as changed.
func (f Fingerprinter) Diff(before, after map[string]string) []string {
	var changed []string
	for name, v := range after {
		if f.IsVolatile(name) {
			continue
		}
		if old, ok := before[name]; !ok || old != v {
			changed = append(changed, name)
		}
	}
	for name := range before {
		if f.IsVolatile(name) {
			continue
		}
		if _, ok := after[name]; !ok {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}
