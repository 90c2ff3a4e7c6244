package auth

import (
	"context"
	"testing"
	"time"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/golang-jwt/jwt"
)

func TestVerify(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	good, err := v.Issue(Identity{UID: "uid-1", Phone: "+79990000000"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := v.Issue(Identity{UID: "uid-1"}, -time.Minute)
	foreign, _ := NewJWTVerifier("other-secret").Issue(Identity{UID: "uid-1"}, time.Hour)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))

	testCases := []struct {
		name  string
		token string
		want  apperr.Kind
		ok    bool
	}{
		{"valid", good, 0, true},
		{"expired", expired, apperr.ExpiredCredential, false},
		{"wrong secret", foreign, apperr.InvalidCredential, false},
		{"garbage", "not.a.token", apperr.InvalidCredential, false},
		{"empty", "", apperr.InvalidCredential, false},
		{"no subject", noSubject, apperr.InvalidCredential, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), tc.token)
			if tc.ok {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if id.UID != "uid-1" || id.Phone != "+79990000000" {
					t.Fatalf("identity = %+v", id)
				}
				return
			}
			if apperr.KindOf(err) != tc.want {
				t.Fatalf("got %v; want %v", err, tc.want)
			}
		})
	}
}

func TestEmptySecretTrustsNothing(t *testing.T) {
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "anyone",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(""))
	if err != nil {
		t.Fatal(err)
	}

	v := NewJWTVerifier("")
	if _, err := v.Verify(context.Background(), forged); apperr.KindOf(err) != apperr.InvalidCredential {
		t.Fatalf("token signed with an empty key: got %v; want InvalidCredential", err)
	}
	if _, err := v.Issue(Identity{UID: "anyone"}, time.Hour); err == nil {
		t.Fatal("issued a token without a secret")
	}
}
