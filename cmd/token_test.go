package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/bwise1/sosedi/internal/auth"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "alice", "--phone", "+79001234567"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}

	id, err := auth.NewJWTVerifier("cli-secret").Verify(context.Background(), strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatal(err)
	}
	if id.UID != "alice" || id.Phone != "+79001234567" {
		t.Fatalf("identity = %+v", id)
	}
}
