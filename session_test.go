package ofstats

import (
	"net/http"
	"path/filepath"
	"testing"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ts := NewTokenStore(filepath.Join(t.TempDir(), "token"))

	if got, err := ts.Load(); err != nil || got != "" {
		t.Fatalf("fresh store: got (%q, %v)", got, err)
	}

	if err := ts.Save("tok123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, _ := ts.Load(); got != "tok123" {
		t.Errorf("load: got %q", got)
	}

	if err := ts.Save("tok456"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := ts.Load(); got != "tok456" {
		t.Errorf("load after overwrite: got %q", got)
	}

	if err := ts.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := ts.Load(); got != "" {
		t.Errorf("load after clear: got %q", got)
	}
	// Clearing twice is fine.
	if err := ts.Clear(); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestCookiesSaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cookies.json")

	e := New()
	e.SetCookies([]*http.Cookie{
		{Name: "sess", Value: "abc", Path: "/"},
		{Name: "auth_id", Value: "101", Path: "/"},
	})
	if err := e.SaveCookies(path); err != nil {
		t.Fatalf("save cookies: %v", err)
	}

	e2 := New()
	if err := e2.LoadCookies(path); err != nil {
		t.Fatalf("load cookies: %v", err)
	}

	got := map[string]string{}
	for _, c := range e2.GetCookies() {
		got[c.Name] = c.Value
	}
	if got["sess"] != "abc" || got["auth_id"] != "101" {
		t.Errorf("cookies not restored: %v", got)
	}
}

func TestLoadCookiesMissingFile(t *testing.T) {
	t.Parallel()
	e := New()
	if err := e.LoadCookies(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing cookies file")
	}
}
