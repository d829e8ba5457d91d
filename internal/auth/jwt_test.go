package auth

import (
	"testing"

	"github.com/findithq/findit/internal/model"
)

const testSecret = "test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(testSecret, 42, "user@example.com", model.RoleSecurityOfficer)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("expected email 'user@example.com', got %q", claims.Email)
	}
	if claims.Role != model.RoleSecurityOfficer {
		t.Errorf("expected role 'securityOfficer', got %q", claims.Role)
	}
	if claims.ID == "" {
		t.Error("expected a JTI")
	}
	if claims.ExpiresAt == nil {
		t.Error("expected an expiry")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(testSecret, 1, "user@example.com", model.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := ValidateToken("other-secret", token); err == nil {
		t.Fatal("expected validation to fail with the wrong secret")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	if _, err := ValidateToken(testSecret, "not.a.token"); err == nil {
		t.Fatal("expected validation to fail for garbage input")
	}
}

func TestJTIUnique(t *testing.T) {
	first, _ := GenerateToken(testSecret, 1, "user@example.com", model.RoleUser)
	second, _ := GenerateToken(testSecret, 1, "user@example.com", model.RoleUser)

	a, err := ValidateToken(testSecret, first)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	b, err := ValidateToken(testSecret, second)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if a.ID == b.ID {
		t.Errorf("expected distinct JTIs, both %q", a.ID)
	}
}
