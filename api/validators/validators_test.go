package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
)

type pauseBody struct {
	Actor  string `json:"actor" validate:"required"`
	Tenant string `json:"tenant" validate:"omitempty,tenant"`
	Action string `json:"action" validate:"omitempty,oneof=CREATE UPDATE DELETE"`
}

func decode(t *testing.T, body string) (pauseBody, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest pauseBody
	err := DecodeJSONBody(req, &dest)
	return dest, err
}

func TestDecodeJSONBodyValid(t *testing.T) {
	got, err := decode(t, `{"actor":"ops","tenant":"tenant_a","action":"UPDATE"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Actor != "ops" || got.Tenant != "tenant_a" {
		t.Fatalf("unexpected decode result %+v", got)
	}
}

func TestDecodeJSONBodyFieldErrors(t *testing.T) {
	_, err := decode(t, `{"tenant":"Bad-Tenant","action":"UPSERT"}`)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["actor"] != "is required" {
		t.Fatalf("unexpected actor message %q", details["actor"])
	}
	if details["tenant"] != "must be a valid tenant schema name" {
		t.Fatalf("unexpected tenant message %q", details["tenant"])
	}
	if !strings.HasPrefix(details["action"], "must be one of") {
		t.Fatalf("unexpected action message %q", details["action"])
	}
}

func TestDecodeJSONBodyRejectsUnknownAndTrailing(t *testing.T) {
	if _, err := decode(t, `{"actor":"ops","extra":1}`); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := decode(t, `{"actor":"ops"}{"actor":"again"}`); err == nil {
		t.Fatal("expected trailing object error")
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&unreadOnly=true&recipient=%20ops%20", nil)
	if v, err := ParseQueryInt(req, "limit", 50, 1, 100); err != nil || v != 20 {
		t.Fatalf("limit: got %d err %v", v, err)
	}
	if _, err := ParseQueryInt(req, "limit", 50, 1, 10); err == nil {
		t.Fatal("expected range error")
	}
	if v, err := ParseQueryBool(req, "unreadOnly", false); err != nil || !v {
		t.Fatalf("unreadOnly: got %v err %v", v, err)
	}
	if v, _ := ParseQueryBool(req, "missing", true); !v {
		t.Fatal("expected default")
	}
	if got := QueryString(req, "recipient", 10); got != "ops" {
		t.Fatalf("recipient: got %q", got)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  ops\x00team\n ", 0); got != "opsteam" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("héllo wörld", 5); got != "héllo" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}
