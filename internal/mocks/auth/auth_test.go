package auth

import (
	"context"
	"testing"
)

func TestFakeIdentityClient_DeterministicSessions(t *testing.T) {
	f := &FakeIdentityClient{}

	a := f.NewSession("user")
	b := f.NewSession("user")
	if a.TokenSet.AccessToken == b.TokenSet.AccessToken {
		t.Fatalf("expected distinct tokens, got %q twice", a.TokenSet.AccessToken)
	}
}

func TestFakeWidgetFactory_LiveCount(t *testing.T) {
	f := &FakeWidgetFactory{}
	ctx := context.Background()

	w1, err := f.Render(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = f.Render(ctx, true); err != nil {
		t.Fatal(err)
	}
	if got := f.LiveCount(); got != 2 {
		t.Fatalf("expected 2 live widgets, got %d", got)
	}

	w1.Destroy()
	if got := f.LiveCount(); got != 1 {
		t.Fatalf("expected 1 live widget after destroy, got %d", got)
	}
}

func TestFakeHostSession_LoginLinksToken(t *testing.T) {
	f := &FakeHostSession{LoginResult: true}
	ctx := context.Background()

	linked, err := f.Login(ctx, "/home")
	if err != nil || !linked {
		t.Fatalf("expected linked login, got %v %v", linked, err)
	}
	if !f.LoggedIn(ctx) {
		t.Fatal("expected logged-in host after linked login")
	}
}
