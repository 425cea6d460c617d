package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", Wrap(KindPersistence, base, "failed to upsert"), KindPersistence},
		{"wrapped by fmt", fmt.Errorf("run: %w", Wrap(KindSummarizer, base, "bad status")), KindSummarizer},
		{"plain error", base, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsKind_Nil(t *testing.T) {
	if IsKind(nil, KindInternal) {
		t.Error("nil error should not match any kind")
	}
}

func TestMessageOf_HidesWrappedDetail(t *testing.T) {
	err := Wrap(KindPersistence, errors.New("pq: password authentication failed"), "failed to store daily analysis")

	if got := MessageOf(err); got != "failed to store daily analysis" {
		t.Errorf("MessageOf() = %q", got)
	}
	if !errors.Is(err, err.Err) {
		t.Error("wrapped error should be reachable through Unwrap")
	}
}
