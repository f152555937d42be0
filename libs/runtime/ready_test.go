package runtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadyz(t *testing.T) {
	failing := func(context.Context) error { return errors.New("down") }
	passing := func(context.Context) error { return nil }

	cases := []struct {
		name     string
		checks   []ReadyCheck
		wantCode int
		wantBody string
	}{
		{name: "no checks", wantCode: http.StatusOK, wantBody: "ok"},
		{name: "all passing", checks: []ReadyCheck{{Name: "db", Check: passing}}, wantCode: http.StatusOK, wantBody: "ok"},
		{name: "required failing", checks: []ReadyCheck{{Name: "db", Check: failing}}, wantCode: http.StatusServiceUnavailable, wantBody: "db: down"},
		{name: "optional failing", checks: []ReadyCheck{{Name: "kafka", Check: failing, Optional: true}}, wantCode: http.StatusOK, wantBody: "degraded: kafka: down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := NewBaseMux(tc.checks...)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.wantBody) {
				t.Fatalf("expected body to contain %q, got %q", tc.wantBody, rec.Body.String())
			}
		})
	}
}
