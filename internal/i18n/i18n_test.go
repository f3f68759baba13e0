package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func initBundle(t *testing.T) {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func TestT(t *testing.T) {
	initBundle(t)

	ctx := WithLocalizer(context.Background(), NewLocalizer("en"))
	if got := T(ctx, "download.not_found"); !strings.Contains(got, "File not found") {
		t.Errorf("en translation = %q", got)
	}

	ctx = WithLocalizer(context.Background(), NewLocalizer("ta"))
	if got := T(ctx, "download.not_found"); strings.Contains(got, "File not found") {
		t.Errorf("ta translation fell back to English: %q", got)
	}
}

func TestTFallsBackToDefault(t *testing.T) {
	initBundle(t)
	// A bare context gets the default-language localizer.
	if got := T(context.Background(), "error.unauthorized"); !strings.Contains(got, "password") {
		t.Errorf("fallback translation = %q", got)
	}
}

func TestTUnknownID(t *testing.T) {
	initBundle(t)
	if got := T(context.Background(), "no.such.message"); got != "no.such.message" {
		t.Errorf("unknown id = %q", got)
	}
}

func TestTd(t *testing.T) {
	initBundle(t)
	got := Td(context.Background(), "generate.success", map[string]any{
		"CourseCode": "C211",
		"Students":   62,
	})
	if !strings.Contains(got, "C211") || !strings.Contains(got, "62") {
		t.Errorf("templated message = %q", got)
	}
}

func TestMiddlewarePrefersAcceptLanguage(t *testing.T) {
	initBundle(t)

	var body string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body = T(r.Context(), "error.unauthorized")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ta")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if strings.Contains(body, "password") {
		t.Errorf("expected Tamil, got %q", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.Contains(body, "password") {
		t.Errorf("expected English default, got %q", body)
	}
}
