package util

import (
	"quiz_platform_backend/internal/model"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("u-1", "Ana", "ana@example.com", model.Student, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != "u-1" || claims.Name != "Ana" || claims.Role != model.Student {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT("u-1", "Ana", "", model.Student, "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT(token, "other"); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	token, err := GenerateJWT("u-1", "Ana", "", model.Student, "secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT(token, "secret"); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestParseBoolLoose(t *testing.T) {
	cases := map[string]struct {
		v, ok bool
	}{
		"true":  {true, true},
		" TRUE": {true, true},
		"f":     {false, true},
		"0":     {false, true},
		"maybe": {false, false},
	}
	for in, want := range cases {
		v, ok := ParseBoolLoose(in)
		if v != want.v || ok != want.ok {
			t.Errorf("ParseBoolLoose(%q) = %v,%v want %v,%v", in, v, ok, want.v, want.ok)
		}
	}
}
