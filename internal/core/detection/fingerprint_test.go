package detection

import (
	"reflect"
	"testing"
)

func sampleEntity() Entity {
	return Entity{
		Code: "M1805",
		Fields: map[string]string{
			FieldTitle:      "Études et développement informatique",
			FieldDefinition: "Conçoit et développe des applications.",
			FieldSkills:     "Go|SQL",
			FieldUpdatedAt:  "2026-01-01",
		},
	}
}

func TestHashIgnoresInsertionOrder(t *testing.T) {
	f := NewFingerprinter([]string{FieldUpdatedAt})
	a := sampleEntity()

	b := Entity{Code: "M1805", Fields: map[string]string{}}
	names := a.FieldNames()
	for i := len(names) - 1; i >= 0; i-- {
		b.Fields[names[i]] = a.Fields[names[i]]
	}

	if f.Hash(a) != f.Hash(b) {
		t.Error("hash depends on field insertion order")
	}
	if len(f.Hash(a)) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(f.Hash(a)))
	}
}

func TestHashExcludesVolatileFields(t *testing.T) {
	f := NewFingerprinter([]string{FieldUpdatedAt})
	a := sampleEntity()
	b := sampleEntity()
	b.Fields[FieldUpdatedAt] = "2026-06-30"

	if f.Hash(a) != f.Hash(b) {
		t.Error("volatile field changed the hash")
	}

	b.Fields[FieldSkills] = "Go|Rust|SQL"
	if f.Hash(a) == f.Hash(b) {
		t.Error("stable field change did not change the hash")
	}
}

func TestHashIncludesCode(t *testing.T) {
	f := NewFingerprinter(nil)
	a := sampleEntity()
	b := sampleEntity()
	b.Code = "M1806"
	if f.Hash(a) == f.Hash(b) {
		t.Error("entities with different codes hashed identically")
	}
}

func TestCanonicalSeparatesNameAndValue(t *testing.T) {
	f := NewFingerprinter(nil)
	a := Entity{Code: "X", Fields: map[string]string{"ab": "c"}}
	b := Entity{Code: "X", Fields: map[string]string{"a": "bc"}}
	if f.Hash(a) == f.Hash(b) {
		t.Error("field boundary is ambiguous in canonical form")
	}
}

func TestCanonicalValueCannotForgeFields(t *testing.T) {
	f := NewFingerprinter(nil)
	tests := []struct {
		name string
		a, b Entity
	}{
		{
			name: "separator inside value",
			a:    Entity{Code: "X", Fields: map[string]string{"a": "1\nb\x002"}},
			b:    Entity{Code: "X", Fields: map[string]string{"a": "1", "b": "2"}},
		},
		{
			name: "separator inside code",
			a:    Entity{Code: "X\na\x001", Fields: map[string]string{}},
			b:    Entity{Code: "X", Fields: map[string]string{"a": "1"}},
		},
		{
			name: "length prefix inside value",
			a:    Entity{Code: "X", Fields: map[string]string{"a": "1:b1:2"}},
			b:    Entity{Code: "X", Fields: map[string]string{"a": "", "b": "2"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f.Hash(tt.a) == f.Hash(tt.b) {
				t.Errorf("distinct entities share a hash: %q", f.Canonical(tt.a))
			}
		})
	}
}

func TestDiff(t *testing.T) {
	f := NewFingerprinter([]string{FieldUpdatedAt})

	tests := []struct {
		name   string
		before map[string]string
		after  map[string]string
		want   []string
	}{
		{
			name:   "no change",
			before: map[string]string{"title": "a", "skills": "x"},
			after:  map[string]string{"title": "a", "skills": "x"},
			want:   nil,
		},
		{
			name:   "value changed",
			before: map[string]string{"title": "a", "skills": "x"},
			after:  map[string]string{"title": "b", "skills": "x"},
			want:   []string{"title"},
		},
		{
			name:   "field added and removed",
			before: map[string]string{"title": "a", "access": "bac"},
			after:  map[string]string{"title": "a", "domain": "M"},
			want:   []string{"access", "domain"},
		},
		{
			name:   "volatile field ignored",
			before: map[string]string{"title": "a", "updated_at": "1"},
			after:  map[string]string{"title": "a", "updated_at": "2"},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Diff(tt.before, tt.after); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}
