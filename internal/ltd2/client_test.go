package ltd2

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c, srv
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestFetchPageSendsAuthAndParams(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", got)
		}
		q := r.URL.Query()
		// Limit above the cap must be clamped, not passed through.
		if got := q.Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		if got := q.Get("offset"); got != "150" {
			t.Errorf("offset = %q, want 150", got)
		}
		if got := q.Get("sortBy"); got != "date" {
			t.Errorf("sortBy = %q, want date", got)
		}
		if got := q.Get("sortDirection"); got != "1" {
			t.Errorf("sortDirection = %q, want 1", got)
		}
		if got := q.Get("includeDetails"); got != "true" {
			t.Errorf("includeDetails = %q, want true", got)
		}
		if got := q.Get("dateAfter"); got != "2023-01-01 00:00:00" {
			t.Errorf("dateAfter = %q, want 2023-01-01 00:00:00", got)
		}
		w.Write([]byte(`[]`))
	})

	games, err := c.FetchPage(context.Background(), PageRequest{
		Limit:          100,
		Offset:         150,
		DateAfter:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		IncludeDetails: true,
	})
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("got %d games, want 0", len(games))
	}
}

func TestFetchPageFiltersZeroLengthGames(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"_id":"m1","date":"2023-01-01T00:00:00Z","gameLength":1200},
			{"_id":"m2","date":"2023-01-01T00:01:00Z","gameLength":0},
			{"_id":"m3","date":"2023-01-01T00:02:00Z","gameLength":900}
		]`))
	})

	games, err := c.FetchPage(context.Background(), PageRequest{})
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("got %d games, want 2", len(games))
	}
	if games[0].ID != "m1" || games[1].ID != "m3" {
		t.Errorf("got ids %s, %s; want m1, m3", games[0].ID, games[1].ID)
	}
}

func TestFetchPageForbidden(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.FetchPage(context.Background(), PageRequest{})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestFetchPageForbiddenBody(t *testing.T) {
	// The API also delivers auth failures as a message payload.
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Forbidden"}`))
	})

	_, err := c.FetchPage(context.Background(), PageRequest{})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestFetchPageRateLimited(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchPage(context.Background(), PageRequest{})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("got %T, want *RateLimitError", err)
	}
	if rl.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %s, want 3s", rl.RetryAfter)
	}
}

func TestFetchPageNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found","err":"Entry not found."}`))
	})

	_, err := c.FetchPage(context.Background(), PageRequest{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestFetchPageQuotaExhausted(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Limit Exceeded","err":[{"keyword":"limit","message":"API request quota exceeded"}]}`))
	})

	// 403 with a quota payload still classifies as forbidden at the status
	// level; a 400 carries the quota detail through.
	_, err := c.FetchPage(context.Background(), PageRequest{})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}

	c2, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Limit Exceeded","err":[{"keyword":"limit","message":"API request quota exceeded"}]}`))
	})
	_, err = c2.FetchPage(context.Background(), PageRequest{})
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("got %v, want ErrQuotaExhausted", err)
	}
}

func TestFetchPageMalformedObject(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	})

	_, err := c.FetchPage(context.Background(), PageRequest{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("got %v, want ErrMalformedResponse", err)
	}
}

func TestFetchPageMissingID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"date":"2023-01-01T00:00:00Z","gameLength":1200}]`))
	})

	_, err := c.FetchPage(context.Background(), PageRequest{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("got %v, want ErrMalformedResponse", err)
	}
}

func TestIsFatal(t *testing.T) {
	fatal := []error{ErrForbidden, ErrQuotaExhausted, ErrMalformedResponse}
	for _, err := range fatal {
		if !IsFatal(err) {
			t.Errorf("IsFatal(%v) = false, want true", err)
		}
	}
	transient := []error{ErrRateLimited, ErrNotFound, &RateLimitError{}, &StatusError{Code: 502}}
	for _, err := range transient {
		if IsFatal(err) {
			t.Errorf("IsFatal(%v) = true, want false", err)
		}
	}
}

func TestParseGameDate(t *testing.T) {
	cases := []string{
		"2023-05-01T10:00:00Z",
		"2023-05-01T10:00:00.000Z",
		"2023-05-01T10:00:00",
		"2023-05-01 10:00:00",
	}
	want := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, s := range cases {
		got, err := ParseGameDate(s)
		if err != nil {
			t.Errorf("ParseGameDate(%q) failed: %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseGameDate(%q) = %s, want %s", s, got, want)
		}
	}

	if _, err := ParseGameDate("not a date"); err == nil {
		t.Error("expected error for unparseable date")
	}
}
