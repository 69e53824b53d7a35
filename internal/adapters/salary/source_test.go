package salary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/aggregate"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

func serve(t *testing.T, wantPath string, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.RequestURI(); got != wantPath {
			t.Errorf("request %s, want %s", got, wantPath)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchSalaryData_Schemas(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		path     string
		body     string
		level    aggregate.Level
		wantMin  *int
		wantMax  *int
		wantMed  *int
		wantSize int
	}{
		{
			name:     "insee",
			kind:     KindINSEE,
			path:     "/salaires/M1805",
			body:     `{"code":"M1805","tranches":[{"niveau":"debutant","salaire_min":30000,"salaire_max":36000,"salaire_median":33000},{"niveau":"inconnu","salaire_min":1}]}`,
			level:    aggregate.LevelJunior,
			wantMin:  aggregate.Int(30000),
			wantMax:  aggregate.Int(36000),
			wantMed:  aggregate.Int(33000),
			wantSize: 1,
		},
		{
			name:     "apec in thousands without median",
			kind:     KindAPEC,
			path:     "/remunerations?rome=M1805",
			body:     `{"fourchettes":{"experimente":{"min":52.5,"max":70},"confirme":{}}}`,
			level:    aggregate.LevelSenior,
			wantMin:  aggregate.Int(52500),
			wantMax:  aggregate.Int(70000),
			wantSize: 1,
		},
		{
			name:     "generic",
			kind:     KindGeneric,
			path:     "/salaries/M1805",
			body:     `{"levels":{"confirmed":{"median":42000},"guru":{"median":1}}}`,
			level:    aggregate.LevelConfirmed,
			wantMed:  aggregate.Int(42000),
			wantSize: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, tt.path, http.StatusOK, tt.body)
			src, err := NewSource(tt.name, tt.kind, server.URL, "", time.Second)
			if err != nil {
				t.Fatal(err)
			}

			got, err := src.FetchSalaryData(context.Background(), "M1805")
			if err != nil {
				t.Fatalf("FetchSalaryData failed: %v", err)
			}
			if len(got) != tt.wantSize {
				t.Fatalf("got %d levels, want %d: %+v", len(got), tt.wantSize, got)
			}
			v := got[tt.level]
			checkInt(t, "min", v.Min, tt.wantMin)
			checkInt(t, "max", v.Max, tt.wantMax)
			checkInt(t, "median", v.Median, tt.wantMed)
		})
	}
}

func checkInt(t *testing.T, field string, got, want *int) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", field, got, want)
	case *got != *want:
		t.Errorf("%s = %d, want %d", field, *got, *want)
	}
}

func TestFetchSalaryData_Unavailable(t *testing.T) {
	server := serve(t, "/salaries/X0001", http.StatusNotFound, "")
	src, _ := NewSource("jobboard", KindGeneric, server.URL, "", time.Second)

	got, err := src.FetchSalaryData(context.Background(), "X0001")
	if err != nil || got != nil {
		t.Fatalf("404 should mean no data, got %v, %v", got, err)
	}

	empty := serve(t, "/salaries/X0001", http.StatusOK, `{"levels":{}}`)
	src, _ = NewSource("jobboard", KindGeneric, empty.URL, "", time.Second)
	got, err = src.FetchSalaryData(context.Background(), "X0001")
	if err != nil || got != nil {
		t.Fatalf("empty payload should mean no data, got %v, %v", got, err)
	}
}

func TestFetchSalaryData_Errors(t *testing.T) {
	server := serve(t, "/salaires/M1805", http.StatusServiceUnavailable, "down")
	src, _ := NewSource("insee", KindINSEE, server.URL, "", time.Second)
	if _, err := src.FetchSalaryData(context.Background(), "M1805"); !secondary.IsTransient(err) {
		t.Errorf("503 should be transient, got %v", err)
	}

	bad := serve(t, "/salaires/M1805", http.StatusOK, "[")
	src, _ = NewSource("insee", KindINSEE, bad.URL, "", time.Second)
	if _, err := src.FetchSalaryData(context.Background(), "M1805"); err == nil || secondary.IsTransient(err) {
		t.Errorf("malformed payload should be a permanent error, got %v", err)
	}
}

func TestNewSource_UnknownKind(t *testing.T) {
	if _, err := NewSource("x", "ftp", "http://x", "", time.Second); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
