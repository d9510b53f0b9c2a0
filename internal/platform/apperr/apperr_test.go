package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.kind.HTTPStatus(); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestFrom_Wrapped(t *testing.T) {
	inner := NotFound("patient %s not found", "abc")
	wrapped := fmt.Errorf("loading patient: %w", inner)

	got := From(wrapped)
	if got == nil {
		t.Fatal("expected to recover application error from wrapped chain")
	}
	if got.Kind != KindNotFound {
		t.Errorf("expected KindNotFound, got %v", got.Kind)
	}
}

func TestFrom_PlainError(t *testing.T) {
	if From(errors.New("boom")) != nil {
		t.Error("plain error should not convert to application error")
	}
}

func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)

	if err.Message != "internal server error" {
		t.Errorf("internal message must be generic, got %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should remain reachable via errors.Is for logging")
	}
}

func TestIsKind(t *testing.T) {
	err := Forbidden("not the owner")
	if !IsKind(err, KindForbidden) {
		t.Error("expected KindForbidden match")
	}
	if IsKind(err, KindNotFound) {
		t.Error("unexpected KindNotFound match")
	}
}
