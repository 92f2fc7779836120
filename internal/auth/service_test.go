package auth

import (
	"context"
	"testing"
	"time"

	"github.com/bher20/tariffmatrix/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(storage.NewMemory())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "s3cret", "editor")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Username != "alice" || u.Role != "editor" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := svc.Register(ctx, "alice", "other", "viewer"); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	got, err := svc.Authenticate(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("authenticated wrong user: %s", got.ID)
	}

	if _, err := svc.Authenticate(ctx, "alice", "wrong"); err == nil {
		t.Fatal("expected bad password to fail")
	}
	if _, err := svc.Authenticate(ctx, "bob", "s3cret"); err == nil {
		t.Fatal("expected unknown user to fail")
	}
}

func TestTokenLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "carol", "pw", "viewer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	tok, raw, err := svc.CreateToken(ctx, u.ID, "ci", "viewer", nil)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if raw == "" || tok.TokenHash == raw {
		t.Fatal("raw token must not be stored verbatim")
	}

	got, err := svc.ValidateToken(ctx, raw)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.ID != tok.ID {
		t.Fatalf("validated wrong token: %s", got.ID)
	}

	if _, err := svc.ValidateToken(ctx, "bogus"); err == nil {
		t.Fatal("expected bogus token to fail")
	}

	past := time.Now().Add(-time.Hour)
	_, rawExpired, err := svc.CreateToken(ctx, u.ID, "old", "viewer", &past)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, rawExpired); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestEnforceRoles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	editor, err := svc.Register(ctx, "ed", "pw", "editor")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	viewer, err := svc.Register(ctx, "vi", "pw", "viewer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	cases := []struct {
		sub, obj, act string
		want          bool
	}{
		{editor.ID, "tariffs", "write", true},
		{editor.ID, "resolutions", "read", true},
		{editor.ID, "settings", "write", false},
		{viewer.ID, "tariffs", "read", true},
		{viewer.ID, "tariffs", "write", false},
	}
	for _, c := range cases {
		ok, err := svc.Enforce(c.sub, c.obj, c.act)
		if err != nil {
			t.Fatalf("Enforce(%s, %s, %s): %v", c.sub, c.obj, c.act, err)
		}
		if ok != c.want {
			t.Errorf("Enforce(%s, %s, %s) = %v, want %v", c.sub, c.obj, c.act, ok, c.want)
		}
	}
}

func TestParseExpirationDuration(t *testing.T) {
	if got, err := ParseExpirationDuration("never"); err != nil || got != nil {
		t.Fatalf("never: got %v, %v", got, err)
	}
	if got, err := ParseExpirationDuration(""); err != nil || got != nil {
		t.Fatalf("empty: got %v, %v", got, err)
	}

	before := time.Now()
	got, err := ParseExpirationDuration("30d")
	if err != nil {
		t.Fatalf("30d: %v", err)
	}
	want := before.Add(30 * 24 * time.Hour)
	if got.Before(want) || got.After(want.Add(time.Minute)) {
		t.Fatalf("30d: got %v, want about %v", got, want)
	}

	if _, err := ParseExpirationDuration("2h30m"); err != nil {
		t.Fatalf("2h30m: %v", err)
	}
	if _, err := ParseExpirationDuration("01/02/2003"); err == nil {
		t.Fatal("expected past date to fail")
	}
	if _, err := ParseExpirationDuration("soonish"); err == nil {
		t.Fatal("expected garbage to fail")
	}
}
