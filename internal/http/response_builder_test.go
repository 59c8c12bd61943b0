package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"spendlog/internal/core"
)

func TestErrorForStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", core.ErrValidation), http.StatusBadRequest},
		{core.ErrAuthentication, http.StatusUnauthorized},
		{fmt.Errorf("get: %w", core.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("email x: %w", core.ErrDuplicate), http.StatusConflict},
		{errors.New("disk I/O error at /var/lib/db"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		ErrorFor(tt.err).Write(rr)
		if rr.Code != tt.want {
			t.Errorf("%v: status=%d want %d", tt.err, rr.Code, tt.want)
		}
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorFor(errors.New("pq: password authentication failed")).Write(rr)
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 1 || body["error"] != "internal error" {
		t.Fatalf("body %v", body)
	}
}

func TestValidationErrorCarriesField(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorFor(core.ErrUnknownCategory).Write(rr)
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Field != "category" {
		t.Fatalf("body %+v", body)
	}
}

func TestBuilderHeadersAndEmptyBody(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Header("X-Test", "1").Write(rr)
	if rr.Code != http.StatusNoContent || rr.Header().Get("X-Test") != "1" || rr.Body.Len() != 0 {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Body)
	}
}
