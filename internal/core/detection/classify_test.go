package detection

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		prior *Prior
		hash  string
		want  ChangeType
	}{
		{"no prior", nil, "h1", ChangeNew},
		{"tombstoned prior", &Prior{Hash: "h1", Deleted: true}, "h1", ChangeNew},
		{"hash differs", &Prior{Hash: "h0"}, "h1", ChangeModified},
		{"hash equal", &Prior{Hash: "h1"}, "h1", ChangeUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.prior, tt.hash); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPlanEntity_New(t *testing.T) {
	f := NewFingerprinter(nil)
	e := Entity{Code: "X0001", Fields: map[string]string{FieldTitle: "Nouveau métier"}}

	plan := f.PlanEntity(e, nil)

	if plan.Change != ChangeNew {
		t.Fatalf("expected new, got %s", plan.Change)
	}
	if !plan.EnsureRecord {
		t.Error("new entity should ensure a draft record")
	}
	if plan.FlagPending {
		t.Error("brand new entity should not be flagged pending")
	}
	if !plan.WritesChange() {
		t.Error("new entity should write a change record")
	}
}

func TestPlanEntity_Reappeared(t *testing.T) {
	f := NewFingerprinter(nil)
	e := Entity{Code: "X0001", Fields: map[string]string{FieldTitle: "Retour"}}

	plan := f.PlanEntity(e, &Prior{Hash: "old", Deleted: true})

	if plan.Change != ChangeNew || !plan.FlagPending || plan.OldHash != "old" {
		t.Errorf("unexpected plan for reappeared entity: %+v", plan)
	}
}

func TestPlanEntity_Modified(t *testing.T) {
	f := NewFingerprinter(nil)
	before := map[string]string{FieldTitle: "Dev", FieldDefinition: "old"}
	prior := &Prior{Hash: f.Hash(Entity{Code: "M1805", Fields: before}), Fields: before}
	e := Entity{Code: "M1805", Fields: map[string]string{FieldTitle: "Dev", FieldDefinition: "new"}}

	plan := f.PlanEntity(e, prior)

	if plan.Change != ChangeModified {
		t.Fatalf("expected modified, got %s", plan.Change)
	}
	if !reflect.DeepEqual(plan.ChangedFields, []string{FieldDefinition}) {
		t.Errorf("ChangedFields = %v", plan.ChangedFields)
	}
	if !plan.FlagPending || plan.EnsureRecord {
		t.Errorf("modified plan flags wrong: %+v", plan)
	}
}

func TestPlanEntity_Unchanged(t *testing.T) {
	f := NewFingerprinter(nil)
	e := Entity{Code: "M1805", Fields: map[string]string{FieldTitle: "Dev"}}

	plan := f.PlanEntity(e, &Prior{Hash: f.Hash(e), Fields: e.Fields})

	if plan.Change != ChangeUnchanged || plan.WritesChange() || plan.FlagPending {
		t.Errorf("unexpected unchanged plan: %+v", plan)
	}
}

func TestPlanDeletions(t *testing.T) {
	live := map[string]string{"A": "ha", "B": "hb", "C": "hc"}
	seen := map[string]struct{}{"B": {}}

	plans := PlanDeletions(live, seen)

	if len(plans) != 2 || plans[0].Code != "A" || plans[1].Code != "C" {
		t.Fatalf("unexpected deletion plans: %+v", plans)
	}
	for _, p := range plans {
		if p.Change != ChangeDeleted || !p.Tombstone || !p.FlagPending {
			t.Errorf("bad deletion plan: %+v", p)
		}
	}
}

// Classifications across one cycle are pairwise disjoint and cover the
// union of previous and current ids.
func TestClassificationPartition(t *testing.T) {
	f := NewFingerprinter(nil)
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		live := map[string]string{}
		priors := map[string]*Prior{}
		for i := 0; i < rng.Intn(20); i++ {
			code := fmt.Sprintf("C%02d", rng.Intn(30))
			fields := map[string]string{"v": fmt.Sprint(rng.Intn(3))}
			hash := f.Hash(Entity{Code: code, Fields: fields})
			live[code] = hash
			priors[code] = &Prior{Hash: hash, Fields: fields}
		}

		seen := map[string]struct{}{}
		classes := map[string]ChangeType{}
		for i := 0; i < rng.Intn(20); i++ {
			code := fmt.Sprintf("C%02d", rng.Intn(30))
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			e := Entity{Code: code, Fields: map[string]string{"v": fmt.Sprint(rng.Intn(3))}}
			classes[code] = f.PlanEntity(e, priors[code]).Change
		}
		for _, p := range PlanDeletions(live, seen) {
			if _, clash := classes[p.Code]; clash {
				t.Fatalf("iteration %d: %s classified twice", iter, p.Code)
			}
			classes[p.Code] = p.Change
		}

		union := map[string]struct{}{}
		for code := range live {
			union[code] = struct{}{}
		}
		for code := range seen {
			union[code] = struct{}{}
		}
		if len(union) != len(classes) {
			t.Fatalf("iteration %d: %d classified, union has %d", iter, len(classes), len(union))
		}
		for code := range union {
			if _, ok := classes[code]; !ok {
				t.Fatalf("iteration %d: %s not classified", iter, code)
			}
		}
	}
}

func TestSummary(t *testing.T) {
	var s Summary
	for _, c := range []ChangeType{ChangeNew, ChangeModified, ChangeModified, ChangeDeleted, ChangeUnchanged} {
		s.Add(c)
	}
	if s.New != 1 || s.Modified != 2 || s.Deleted != 1 || s.Unchanged != 1 || s.Changes() != 4 {
		t.Errorf("unexpected summary: %+v", s)
	}
}
