package session

import (
	"errors"
	"testing"

	"gamechat/pkg/interfaces"
)

func newTestAuthenticator(t *testing.T, sessions map[string]string) *Authenticator {
	t.Helper()

	dir := t.TempDir()
	for token, payload := range sessions {
		writeSession(t, dir, token, payload)
	}

	return NewAuthenticator(NewFileStore(dir))
}

func TestResolveLoggedInSession(t *testing.T) {
	auth := newTestAuthenticator(t, map[string]string{
		"abc123": `user_id|i:42;user_nickname|s:6:"knight";`,
	})

	userID, err := auth.Resolve("abc123")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if userID != 42 {
		t.Errorf("Resolve() = %d, want 42", userID)
	}
}

func TestResolveStringIdentity(t *testing.T) {
	auth := newTestAuthenticator(t, map[string]string{
		"tok1": `user_id|s:3:"108";`,
	})

	userID, err := auth.Resolve("tok1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if userID != 108 {
		t.Errorf("Resolve() = %d, want 108", userID)
	}
}

func TestResolveUnknownToken(t *testing.T) {
	auth := newTestAuthenticator(t, nil)

	_, err := auth.Resolve("missing")
	if !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Resolve() error = %v, want ErrSessionNotFound", err)
	}
}

// A session that exists but was never promoted to a login has no user_id
// entry; it is indistinguishable from no session at all.
func TestResolveAnonymousSession(t *testing.T) {
	auth := newTestAuthenticator(t, map[string]string{
		"tok1": `csrf|s:4:"aaaa";`,
	})

	_, err := auth.Resolve("tok1")
	if !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Resolve() error = %v, want ErrSessionNotFound", err)
	}
}

func TestResolveEmptyRecord(t *testing.T) {
	auth := newTestAuthenticator(t, map[string]string{"tok1": ``})

	_, err := auth.Resolve("tok1")
	if !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Resolve() error = %v, want ErrSessionNotFound", err)
	}
}

func TestResolveMalformedIdentity(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"null", `user_id|N;`},
		{"boolean", `user_id|b:1;`},
		{"zero", `user_id|i:0;`},
		{"negative", `user_id|i:-3;`},
		{"non-numeric string", `user_id|s:5:"admin";`},
		{"array", `user_id|a:1:{i:0;i:42;}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := newTestAuthenticator(t, map[string]string{"tok1": tt.payload})

			_, err := auth.Resolve("tok1")
			if !errors.Is(err, interfaces.ErrSessionMalformed) {
				t.Errorf("Resolve() error = %v, want ErrSessionMalformed", err)
			}
		})
	}
}

// Entries after user_id may be broken without affecting resolution.
func TestResolveToleratesTrailingGarbage(t *testing.T) {
	auth := newTestAuthenticator(t, map[string]string{
		"tok1": `user_id|i:42;corrupt|x:!!`,
	})

	userID, err := auth.Resolve("tok1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if userID != 42 {
		t.Errorf("Resolve() = %d, want 42", userID)
	}
}
