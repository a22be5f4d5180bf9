package security

import (
	"strings"
	"testing"
	"time"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	token, errSign := SignAdminToken("secret-1", time.Hour, now)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	claims, errParse := ParseAdminToken("secret-1", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.Subject != AdminSubject {
		t.Fatalf("subject = %q, want %q", claims.Subject, AdminSubject)
	}
}

func TestAdminTokenRejectsWrongSecret(t *testing.T) {
	token, errSign := SignAdminToken("secret-1", time.Hour, time.Now().UTC())
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	if _, errParse := ParseAdminToken("secret-2", token); errParse == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}

func TestAdminTokenRejectsExpired(t *testing.T) {
	issued := time.Now().UTC().Add(-2 * time.Hour)
	token, errSign := SignAdminToken("secret-1", time.Hour, issued)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	if _, errParse := ParseAdminToken("secret-1", token); errParse == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestSignAdminTokenEmptySecret(t *testing.T) {
	if _, errSign := SignAdminToken("", time.Hour, time.Now()); errSign == nil {
		t.Fatal("empty secret was accepted")
	}
}

func TestMasterKeyHashRoundTrip(t *testing.T) {
	hash, errHash := HashMasterKey("open-sesame")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if !CheckMasterKey(hash, "open-sesame") {
		t.Fatal("matching key rejected")
	}
	if CheckMasterKey(hash, "open-says-me") {
		t.Fatal("wrong key accepted")
	}
}

func TestGenerateAccessKey(t *testing.T) {
	first, errFirst := GenerateAccessKey()
	if errFirst != nil {
		t.Fatalf("generate: %v", errFirst)
	}
	if !strings.HasPrefix(first, "sk-gw-") {
		t.Fatalf("key %q missing prefix", first)
	}
	second, errSecond := GenerateAccessKey()
	if errSecond != nil {
		t.Fatalf("generate: %v", errSecond)
	}
	if first == second {
		t.Fatal("two generated keys collided")
	}
}
