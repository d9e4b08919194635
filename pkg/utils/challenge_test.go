package utils

import (
	"testing"

	"github.com/google/uuid"
)

func TestChallengeTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateChallengeToken(userID, "alice@example.com")
	if err != nil {
		t.Fatalf("failed to generate challenge: %v", err)
	}

	claims, err := ValidateChallengeToken(token)
	if err != nil {
		t.Fatalf("challenge rejected: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("wrong user in claims: %s", claims.UserID)
	}
	if claims.JTI == "" {
		t.Fatal("challenge must carry a JTI")
	}
}

func TestChallengeJTIConsumedOnce(t *testing.T) {
	token, err := GenerateChallengeToken(uuid.New(), "bob@example.com")
	if err != nil {
		t.Fatalf("failed to generate challenge: %v", err)
	}
	claims, err := ValidateChallengeToken(token)
	if err != nil {
		t.Fatalf("challenge rejected: %v", err)
	}

	if !IsJTIValid(claims.JTI) {
		t.Fatal("fresh JTI must be valid")
	}
	ConsumeJTI(claims.JTI)
	if IsJTIValid(claims.JTI) {
		t.Fatal("consumed JTI must be invalid")
	}
}

func TestAccessTokenIsNotAChallenge(t *testing.T) {
	pair, err := GenerateTokenPair(testUser())
	if err != nil {
		t.Fatalf("failed to generate pair: %v", err)
	}

	if _, err := ValidateChallengeToken(pair.AccessToken); err == nil {
		t.Fatal("access token must not validate as a login challenge")
	}
}
