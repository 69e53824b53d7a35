package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

func response(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Status:     http.StatusText(code),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		code          int
		wantErr       bool
		wantTransient bool
	}{
		{200, false, false},
		{204, false, false},
		{400, true, false},
		{401, true, false},
		{404, true, false},
		{500, true, false},
		{429, true, true},
		{502, true, true},
		{503, true, true},
		{504, true, true},
		{StatusOverloaded, true, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := CheckResponse("fetch", response(tt.code, "detail"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckResponse(%d) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if got := secondary.IsTransient(err); got != tt.wantTransient {
				t.Errorf("CheckResponse(%d) transient = %v, want %v", tt.code, got, tt.wantTransient)
			}
		})
	}
}

func TestWrapTransportError(t *testing.T) {
	cause := errors.New("connection reset")

	if err := WrapTransportError(context.Background(), "fetch", cause); !secondary.IsTransient(err) {
		t.Errorf("live context: expected transient, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WrapTransportError(ctx, "fetch", cause)
	if secondary.IsTransient(err) {
		t.Errorf("cancelled context: expected permanent, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause should stay wrapped: %v", err)
	}
}
