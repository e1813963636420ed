package auth

import (
	"strings"
	"testing"
	"time"
)

func TestRoomToken_RoundTrip(t *testing.T) {
	issuer, err := NewRoomTokenIssuer("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewRoomTokenIssuer failed: %v", err)
	}

	grant := RoomGrant{Room: "salon-session-1", RoomJoin: true, CanPublishData: true, CanSubscribe: true}
	token, err := issuer.Issue("+15550100", grant)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Identity() != "+15550100" {
		t.Errorf("Identity = %q", claims.Identity())
	}
	if claims.Grant != grant {
		t.Errorf("Grant = %+v, want %+v", claims.Grant, grant)
	}
}

func TestRoomToken_Rejects(t *testing.T) {
	issuer, _ := NewRoomTokenIssuer("test-secret", time.Minute)
	other, _ := NewRoomTokenIssuer("other-secret", time.Minute)
	expired, _ := NewRoomTokenIssuer("test-secret", time.Nanosecond)

	foreign, _ := other.Issue("a", RoomGrant{Room: "r", RoomJoin: true})
	stale, _ := expired.Issue("a", RoomGrant{Room: "r", RoomJoin: true})
	time.Sleep(1100 * time.Millisecond)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", foreign},
		{"expired", stale},
		{"garbage", "not-a-token"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Verify(tt.token); err == nil {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestRoomToken_IssueValidation(t *testing.T) {
	if _, err := NewRoomTokenIssuer("", time.Minute); err == nil {
		t.Error("empty secret should be rejected")
	}
	issuer, _ := NewRoomTokenIssuer("s", 0)
	if _, err := issuer.Issue("", RoomGrant{Room: "r"}); err == nil {
		t.Error("empty identity should be rejected")
	}
	if _, err := issuer.Issue("a", RoomGrant{}); err == nil {
		t.Error("empty room should be rejected")
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer  abc ", "abc", false},
		{"Basic abc", "", true},
		{"", "", true},
		{"Bearer ", "", true},
	}
	for _, tt := range tests {
		got, err := ExtractToken(tt.header)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ExtractToken(%q) = %q, %v", tt.header, got, err)
		}
	}
}

func TestAPIKeyVerifier(t *testing.T) {
	hashed, err := HashAPIKey("supervisor-key")
	if err != nil {
		t.Fatalf("HashAPIKey failed: %v", err)
	}
	if !strings.HasPrefix(hashed, "argon2id$") {
		t.Fatalf("unexpected hash format %q", hashed)
	}

	for _, configured := range []string{"supervisor-key", hashed} {
		v, err := NewAPIKeyVerifier(configured)
		if err != nil {
			t.Fatalf("NewAPIKeyVerifier(%q) failed: %v", configured, err)
		}
		if !v.Verify("supervisor-key") {
			t.Errorf("correct key rejected for %q", configured)
		}
		if v.Verify("wrong-key") {
			t.Errorf("wrong key accepted for %q", configured)
		}
	}

	if _, err := NewAPIKeyVerifier("argon2id$onlyonepart"); err == nil {
		t.Error("malformed hash should be rejected")
	}
}
