package apierr

import (
	"errors"
	"net/http"
	"testing"

	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"rule", domainagg.NewError(domainagg.CodeBusinessRule, "library.approve", "The object isn't in draft status.", nil), http.StatusBadRequest, "The object isn't in draft status."},
		{"missing", domainagg.NewError(domainagg.CodeNotFound, "library.find", "", nil), http.StatusNotFound, "not_found"},
		{"conflict", domainagg.NewError(domainagg.CodeConflict, "library.edit", "edge already closed", nil), http.StatusConflict, "edge already closed"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromError(tc.err)
			if got.Status != tc.status || got.Error() != tc.msg {
				t.Fatalf("want %d %q got %d %q", tc.status, tc.msg, got.Status, got.Error())
			}
		})
	}
}
