package errors

import (
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"conflict", fmt.Errorf("flags: %w", ErrConfigConflict), ExitConfig},
		{"invalid config", ErrInvalidConfig, ExitConfig},
		{"missing open", &HeaderError{Tag: "#open"}, ExitMissingOpen},
		{"missing path", &HeaderError{Tag: "#path", Source: "conn.log"}, ExitMissingPath},
		{"path not derivable", fmt.Errorf("x: %w", ErrPathNotDerivable), ExitMissingPath},
		{"filter", New(ErrInvalidFilter, ExitInvalidFilter, "bad token"), ExitInvalidFilter},
		{"input", ErrInput, ExitInput},
		{"app error overrides", New(ErrInternal, 7, "boom"), 7},
		{"other", fmt.Errorf("unexpected"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestHeaderErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("reading header: %w", &HeaderError{Tag: "#open", Source: "dns.log"})
	if !Is(err, ErrHeaderNotFound) {
		t.Fatalf("expected %v to wrap ErrHeaderNotFound", err)
	}
	var hdr *HeaderError
	if !As(err, &hdr) || hdr.Tag != "#open" {
		t.Fatalf("expected HeaderError with tag #open, got %+v", hdr)
	}
	if got, want := hdr.Error(), "header not found: #open in dns.log"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
