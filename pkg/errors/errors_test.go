package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapIncludesOperation(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Transient("settlement: load candidates", internal)

	if err.Error() != "settlement: load candidates: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if !stdErrors.Is(err, internal) {
		t.Fatal("expected wrapped error to unwrap to the internal error")
	}
}

func TestWrapNil(t *testing.T) {
	if Row("op", nil) != nil {
		t.Fatal("expected nil error to stay nil")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"row", Row("notify", stdErrors.New("x")), KindRow},
		{"wrapped push", fmt.Errorf("outer: %w", Push("deliver", stdErrors.New("x"))), KindPush},
		{"sentinel config", fmt.Errorf("load: %w", ErrStoreNotConfigured), KindConfiguration},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"plain", stdErrors.New("plain"), KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := Configuration("startup", ErrStoreNotConfigured)
	if !Is(err, KindConfiguration) {
		t.Fatal("expected configuration kind")
	}
	if Is(err, KindTransient) {
		t.Fatal("did not expect transient kind")
	}
}
