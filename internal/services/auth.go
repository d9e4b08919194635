package services

import (
	"strings"
	"time"

	"github.com/ballotbox/backend/internal/config"
	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/pkg/logger"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Origin identifies where a request came from, for audit purposes.
type Origin struct {
	IP        string
	RequestID string
}

// LoginResult is the outcome of a successful Authenticate call. Either
// Tokens is set, or SecondFactorRequired is true and ChallengeToken holds
// the pending-session reference — never both.
type LoginResult struct {
	User                 *models.User
	Tokens               *utils.TokenPair
	SecondFactorRequired bool
	ChallengeToken       string
	Methods              []string
}

// AuthService is the login state machine: credential verification, lockout
// enforcement and second-factor gating. Policy is fixed at construction;
// nothing in here branches on ambient environment flags.
type AuthService struct {
	DB     *gorm.DB
	Audit  *AuditService
	Policy config.LoginPolicy
}

func NewAuthService(db *gorm.DB, audit *AuditService, policy config.LoginPolicy) *AuthService {
	if policy.LockoutThreshold <= 0 {
		policy.LockoutThreshold = 5
	}
	if policy.LockoutDuration <= 0 {
		policy.LockoutDuration = 15 * time.Minute
	}
	return &AuthService{DB: db, Audit: audit, Policy: policy}
}

// Authenticate runs the password stage of the state machine. Ordering is
// load-bearing: the lockout check precedes password verification (a locked
// account never reveals whether the password was correct), and the counter
// reset precedes the email-verification and second-factor branches (a
// correct password always clears brute-force state).
func (s *AuthService) Authenticate(identifier, password string, origin Origin) (*LoginResult, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	user, err := s.lookup(identifier)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		s.Audit.LogAsync(AuditEntry{
			Action:       models.ActionLoginFailed,
			ResourceType: "user",
			Details:      map[string]interface{}{"identifier": identifier, "reason": "unknown_identifier"},
			IPAddress:    origin.IP,
			RequestID:    origin.RequestID,
		})
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		s.Audit.LogAsync(AuditEntry{
			UserID:       &user.ID,
			Action:       models.ActionLoginBlocked,
			ResourceType: "user",
			ResourceID:   &user.ID,
			IPAddress:    origin.IP,
			RequestID:    origin.RequestID,
		})
		return nil, ErrAccountLocked
	}

	if !utils.CheckPassword(password, user.PasswordHash) {
		if err := s.recordPasswordFailure(user, origin); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"locked_until":          nil,
		}).Error; err != nil {
			return nil, err
		}
	}

	if !user.EmailVerified {
		return nil, ErrEmailUnverified
	}

	var mfaCfg models.MFAConfig
	hasMFA := s.DB.First(&mfaCfg, "user_id = ?", user.ID).Error == nil && mfaCfg.TOTPEnabled
	if hasMFA {
		challenge, err := utils.GenerateChallengeToken(user.ID, user.Email)
		if err != nil {
			return nil, err
		}

		methods := []string{"totp"}
		if mfaCfg.RecoveryCount > 0 {
			methods = append(methods, "recovery")
		}

		s.Audit.LogAsync(AuditEntry{
			UserID:       &user.ID,
			Action:       models.ActionLogin2FAPending,
			ResourceType: "user",
			ResourceID:   &user.ID,
			Details:      map[string]interface{}{"methods": methods},
			IPAddress:    origin.IP,
			RequestID:    origin.RequestID,
		})

		return &LoginResult{
			User:                 user,
			SecondFactorRequired: true,
			ChallengeToken:       challenge,
			Methods:              methods,
		}, nil
	}

	return s.issue(user, "password", origin)
}

// VerifySecondFactor runs the code stage against a pending challenge. A
// failure here increments the second-factor counter, never the password
// one: the two brute-force channels are accounted separately.
func (s *AuthService) VerifySecondFactor(challengeToken, code string, origin Origin) (*LoginResult, error) {
	user, mfaCfg, claims, err := s.resolveChallenge(challengeToken)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if mfaCfg.LockedUntil != nil && mfaCfg.LockedUntil.After(now) {
		return nil, ErrAccountLocked
	}

	secret := utils.DecryptOrPlaintext(mfaCfg.TOTPSecret)
	if !ValidateTOTPCode(secret, code) {
		if err := s.recordSecondFactorFailure(user, mfaCfg, origin); err != nil {
			return nil, err
		}
		return nil, ErrInvalidSecondFactorCode
	}

	if mfaCfg.FailedAttempts > 0 || mfaCfg.LockedUntil != nil {
		if err := s.DB.Model(&models.MFAConfig{}).Where("id = ?", mfaCfg.ID).Updates(map[string]interface{}{
			"failed_attempts": 0,
			"locked_until":    nil,
		}).Error; err != nil {
			return nil, err
		}
	}

	utils.ConsumeJTI(claims.JTI)
	return s.issue(user, "totp", origin)
}

// VerifyRecoveryCode authenticates with a single-use recovery code. The
// matched hash is removed from the stored set before tokens are issued.
func (s *AuthService) VerifyRecoveryCode(challengeToken, code string, origin Origin) (*LoginResult, error) {
	user, mfaCfg, claims, err := s.resolveChallenge(challengeToken)
	if err != nil {
		return nil, err
	}

	remaining, err := ConsumeRecoveryCode(s.DB, mfaCfg, code)
	if err != nil {
		if err == ErrInvalidSecondFactorCode {
			s.Audit.LogAsync(AuditEntry{
				UserID:       &user.ID,
				Action:       models.Action2FAFailed,
				ResourceType: "user",
				ResourceID:   &user.ID,
				Details:      map[string]interface{}{"method": "recovery"},
				IPAddress:    origin.IP,
				RequestID:    origin.RequestID,
			})
		}
		return nil, err
	}

	utils.ConsumeJTI(claims.JTI)

	s.Audit.LogAsync(AuditEntry{
		UserID:       &user.ID,
		Action:       models.ActionRecoveryUsed,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"remaining_codes": remaining},
		IPAddress:    origin.IP,
		RequestID:    origin.RequestID,
	})

	pair, err := utils.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Refresh exchanges a valid refresh credential for a fresh token pair.
func (s *AuthService) Refresh(refreshToken string) (*LoginResult, error) {
	userID, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidChallenge
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvalidChallenge
		}
		return nil, err
	}

	pair, err := utils.GenerateTokenPair(&user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: &user, Tokens: pair}, nil
}

// MarkEmailVerified flips the verification flag once a verification flow
// (delivered outside this core) completes.
func (s *AuthService) MarkEmailVerified(userID uuid.UUID, origin Origin) error {
	result := s.DB.Model(&models.User{}).Where("id = ?", userID).Update("email_verified", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &userID,
		Action:       models.ActionEmailVerified,
		ResourceType: "user",
		ResourceID:   &userID,
		IPAddress:    origin.IP,
		RequestID:    origin.RequestID,
	})
	return nil
}

func (s *AuthService) lookup(identifier string) (*models.User, error) {
	var user models.User
	query := s.DB.Where("email = ?", identifier)
	if s.Policy.AllowUsernameLogin {
		query = s.DB.Where("email = ? OR username = ?", identifier, identifier)
	}
	if err := query.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// recordPasswordFailure increments the failed-login counter with a single
// SQL expression so concurrent failures never under-count, then applies
// the lockout with a guarded update so exactly one writer records the
// ACCOUNT_LOCKED event.
func (s *AuthService) recordPasswordFailure(user *models.User, origin Origin) error {
	if err := s.DB.Model(&models.User{}).Where("id = ?", user.ID).
		UpdateColumn("failed_login_attempts", gorm.Expr("failed_login_attempts + 1")).Error; err != nil {
		return err
	}

	var fresh models.User
	if err := s.DB.First(&fresh, "id = ?", user.ID).Error; err != nil {
		return err
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &user.ID,
		Action:       models.ActionLoginFailed,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"failed_attempts": fresh.FailedLoginAttempts},
		IPAddress:    origin.IP,
		RequestID:    origin.RequestID,
	})

	if fresh.FailedLoginAttempts < s.Policy.LockoutThreshold {
		return nil
	}

	now := time.Now().UTC()
	lockUntil := now.Add(s.Policy.LockoutDuration)
	result := s.DB.Model(&models.User{}).
		Where("id = ? AND (locked_until IS NULL OR locked_until < ?)", user.ID, now).
		UpdateColumn("locked_until", lockUntil)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		logger.WarnWithUser(user.ID.String(), "account_locked", map[string]interface{}{
			"failed_attempts": fresh.FailedLoginAttempts,
			"ip":              origin.IP,
		})
		s.Audit.LogAsync(AuditEntry{
			UserID:       &user.ID,
			Action:       models.ActionAccountLocked,
			ResourceType: "user",
			ResourceID:   &user.ID,
			Details:      map[string]interface{}{"failed_attempts": fresh.FailedLoginAttempts},
			IPAddress:    origin.IP,
			RequestID:    origin.RequestID,
		})
	}
	return nil
}

func (s *AuthService) recordSecondFactorFailure(user *models.User, mfaCfg *models.MFAConfig, origin Origin) error {
	if err := s.DB.Model(&models.MFAConfig{}).Where("id = ?", mfaCfg.ID).
		UpdateColumn("failed_attempts", gorm.Expr("failed_attempts + 1")).Error; err != nil {
		return err
	}

	var fresh models.MFAConfig
	if err := s.DB.First(&fresh, "id = ?", mfaCfg.ID).Error; err != nil {
		return err
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &user.ID,
		Action:       models.Action2FAFailed,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"method": "totp", "failed_attempts": fresh.FailedAttempts},
		IPAddress:    origin.IP,
		RequestID:    origin.RequestID,
	})

	if fresh.FailedAttempts < s.Policy.LockoutThreshold {
		return nil
	}

	now := time.Now().UTC()
	lockUntil := now.Add(s.Policy.LockoutDuration)
	result := s.DB.Model(&models.MFAConfig{}).
		Where("id = ? AND (locked_until IS NULL OR locked_until < ?)", mfaCfg.ID, now).
		UpdateColumn("locked_until", lockUntil)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		s.Audit.LogAsync(AuditEntry{
			UserID:       &user.ID,
			Action:       models.ActionAccountLocked,
			ResourceType: "user",
			ResourceID:   &user.ID,
			Details:      map[string]interface{}{"channel": "second_factor", "failed_attempts": fresh.FailedAttempts},
			IPAddress:    origin.IP,
			RequestID:    origin.RequestID,
		})
	}
	return nil
}

// resolveChallenge validates the pending-session token and reloads account
// and second-factor state. A challenge against an account whose second
// factor is no longer enabled fails closed.
func (s *AuthService) resolveChallenge(challengeToken string) (*models.User, *models.MFAConfig, *utils.ChallengeClaims, error) {
	claims, err := utils.ValidateChallengeToken(challengeToken)
	if err != nil {
		return nil, nil, nil, ErrInvalidChallenge
	}
	if !utils.IsJTIValid(claims.JTI) {
		return nil, nil, nil, ErrInvalidChallenge
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil, nil, nil, ErrInvalidChallenge
	}

	var mfaCfg models.MFAConfig
	if err := s.DB.First(&mfaCfg, "user_id = ?", user.ID).Error; err != nil || !mfaCfg.TOTPEnabled {
		return nil, nil, nil, ErrSecondFactorConflict
	}

	return &user, &mfaCfg, claims, nil
}

func (s *AuthService) issue(user *models.User, method string, origin Origin) (*LoginResult, error) {
	pair, err := utils.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{
		"method": method,
		"role":   string(user.Role),
	}
	if user.OrganizationID != nil {
		details["organization_id"] = user.OrganizationID.String()
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &user.ID,
		Action:       models.ActionLoginSuccess,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      details,
		IPAddress:    origin.IP,
		RequestID:    origin.RequestID,
	})

	return &LoginResult{User: user, Tokens: pair}, nil
}
