package utils

import (
	"os"
	"testing"
	"time"

	"github.com/ballotbox/backend/internal/models"
	"github.com/google/uuid"
)

func TestMain(m *testing.M) {
	ConfigureJWT("test-secret", 15*time.Minute, 168*time.Hour)
	ConfigureEncryption("test-secret")
	os.Exit(m.Run())
}

func testUser() *models.User {
	orgID := uuid.New()
	return &models.User{
		BaseModel:      models.BaseModel{ID: uuid.New()},
		Email:          "alice@example.com",
		Role:           models.UserRoleOrganizer,
		OrganizationID: &orgID,
	}
}

func TestTokenPairRoundTrip(t *testing.T) {
	user := testUser()

	pair, err := GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("failed to generate pair: %v", err)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
	if !pair.ExpiresAt.After(time.Now()) {
		t.Fatal("access expiry must be in the future")
	}

	claims, err := ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("access token rejected: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("wrong user in claims: %s", claims.UserID)
	}
	if claims.Role != models.UserRoleOrganizer {
		t.Fatalf("wrong role in claims: %s", claims.Role)
	}

	userID, err := ValidateRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh token rejected: %v", err)
	}
	if userID != user.ID {
		t.Fatalf("wrong user from refresh token: %s", userID)
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	pair, err := GenerateTokenPair(testUser())
	if err != nil {
		t.Fatalf("failed to generate pair: %v", err)
	}

	if _, err := ValidateAccessToken(pair.RefreshToken); err == nil {
		t.Fatal("refresh token must not validate as access token")
	}
	if _, err := ValidateRefreshToken(pair.AccessToken); err == nil {
		t.Fatal("access token must not validate as refresh token")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	pair, err := GenerateTokenPair(testUser())
	if err != nil {
		t.Fatalf("failed to generate pair: %v", err)
	}

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	if _, err := ValidateAccessToken(tampered); err == nil {
		t.Fatal("tampered token must be rejected")
	}
}
