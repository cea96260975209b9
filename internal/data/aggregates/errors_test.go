package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
	if got := domainagg.MessageOf(err); got != "bad input" {
		t.Fatalf("expected tagged message to be stripped, got %q", got)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("stale"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}

func TestMapError_Table(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"rule violation", library.Violation(library.MsgNewVersionOnFinal), domainagg.CodeBusinessRule},
		{"wrapped rule violation", fmt.Errorf("edit: %w", library.Violation(library.MsgNotDraft)), domainagg.CodeBusinessRule},
		{"duplicate", fmt.Errorf("insert root: %w", graphstore.ErrDuplicate), domainagg.CodeConflict},
		{"missing", graphstore.ErrMissing, domainagg.CodePreconditionFailed},
		{"canceled", context.Canceled, domainagg.CodeRetryable},
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, domainagg.CodeRetryable},
		{"pg fk", &pgconn.PgError{Code: "23503"}, domainagg.CodePreconditionFailed},
		{"sqlite busy", errors.New("database is locked"), domainagg.CodeRetryable},
		{"other", errors.New("boom"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := domainagg.CodeOf(MapError("op", tc.err)); got != tc.want {
				t.Fatalf("code: want=%s got=%s", tc.want, got)
			}
		})
	}
}
