package nakama

import (
	"encoding/base64"
	"testing"
)

func TestExtractUserIDFromToken(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"uid":"user-123","exp":1}`))
	token := "header." + payload + ".sig"

	uid, err := extractUserIDFromToken(token)
	if err != nil {
		t.Fatalf("extractUserIDFromToken failed: %v", err)
	}
	if uid != "user-123" {
		t.Fatalf("uid = %q, want %q", uid, "user-123")
	}
}

func TestExtractUserIDFromTokenRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "NotAJWT", token: "plainstring"},
		{name: "BadBase64", token: "a.!!!.c"},
		{name: "MissingUid", token: "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1}`)) + ".c"},
		{name: "NotJSON", token: "a." + base64.RawURLEncoding.EncodeToString([]byte(`uid`)) + ".c"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if _, err := extractUserIDFromToken(test.token); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
