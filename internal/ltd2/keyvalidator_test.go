package ltd2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateKeyValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "good-key" {
			t.Errorf("x-api-key = %q, want good-key", got)
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	v := NewKeyValidator(WithValidatorBaseURL(srv.URL))
	valid, err := v.ValidateKey(context.Background(), "good-key")
	if err != nil {
		t.Fatalf("ValidateKey failed: %v", err)
	}
	if !valid {
		t.Error("key should be valid")
	}
}

func TestValidateKeyInvalid(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		v := NewKeyValidator(WithValidatorBaseURL(srv.URL))
		valid, err := v.ValidateKey(context.Background(), "bad-key")
		srv.Close()
		if err != nil {
			t.Fatalf("ValidateKey failed on status %d: %v", status, err)
		}
		if valid {
			t.Errorf("key should be invalid on status %d", status)
		}
	}
}

func TestValidateKeyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewKeyValidator(WithValidatorBaseURL(srv.URL))
	if _, err := v.ValidateKey(context.Background(), "some-key"); err == nil {
		t.Error("expected error on server failure")
	}
}

func TestValidateKeyEmpty(t *testing.T) {
	v := NewKeyValidator()
	if _, err := v.ValidateKey(context.Background(), ""); err == nil {
		t.Error("expected error for empty key")
	}
}
