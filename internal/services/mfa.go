package services

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const recoveryCodeCount = 10

// ValidateTOTPCode checks a 6-digit code against the shared secret,
// accepting up to two 30-second steps of clock drift in either direction.
func ValidateTOTPCode(secret, code string) bool {
	valid, err := totp.ValidateCustom(strings.TrimSpace(code), secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      2,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

// ConsumeRecoveryCode matches the presented code against the stored bcrypt
// hashes and, on a match, removes that hash so the code can never be used
// again. Returns the number of codes remaining.
func ConsumeRecoveryCode(db *gorm.DB, cfg *models.MFAConfig, code string) (int, error) {
	var hashes []string
	if cfg.RecoveryCodes == "" {
		return 0, ErrInvalidSecondFactorCode
	}
	if err := json.Unmarshal([]byte(cfg.RecoveryCodes), &hashes); err != nil {
		return 0, err
	}

	code = strings.ToLower(strings.TrimSpace(code))
	matched := -1
	for i, hash := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil {
			matched = i
			break
		}
	}
	if matched < 0 {
		return 0, ErrInvalidSecondFactorCode
	}

	hashes = append(hashes[:matched], hashes[matched+1:]...)
	data, err := json.Marshal(hashes)
	if err != nil {
		return 0, err
	}

	if err := db.Model(&models.MFAConfig{}).Where("id = ?", cfg.ID).Updates(map[string]interface{}{
		"recovery_codes": string(data),
		"recovery_count": len(hashes),
	}).Error; err != nil {
		return 0, err
	}

	return len(hashes), nil
}

func generateRecoveryCodes(count int) ([]string, string, error) {
	codes := make([]string, 0, count)
	hashes := make([]string, 0, count)

	for i := 0; i < count; i++ {
		b := make([]byte, 8)
		if _, err := rand.Read(b); err != nil {
			return nil, "", err
		}
		code := hex.EncodeToString(b)

		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", err
		}

		codes = append(codes, code)
		hashes = append(hashes, string(hash))
	}

	data, err := json.Marshal(hashes)
	if err != nil {
		return nil, "", err
	}
	return codes, string(data), nil
}

// MFAService drives the second-factor lifecycle: setup, confirmation,
// recovery-code management and teardown. Setup and Enable are distinct
// steps on purpose; a secret that was never confirmed with a live code
// must never become an enforced factor.
type MFAService struct {
	DB     *gorm.DB
	Audit  *AuditService
	Issuer string
}

func NewMFAService(db *gorm.DB, audit *AuditService, issuer string) *MFAService {
	if issuer == "" {
		issuer = "BallotBox"
	}
	return &MFAService{DB: db, Audit: audit, Issuer: issuer}
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthURL"`
}

type MFAStatus struct {
	Enabled                bool       `json:"enabled"`
	PendingSetup           bool       `json:"pendingSetup"`
	VerifiedAt             *time.Time `json:"verifiedAt,omitempty"`
	RecoveryCodesRemaining int        `json:"recoveryCodesRemaining"`
}

// Setup generates a fresh secret and provisioning URL. Calling it again
// before Enable replaces the pending secret; calling it while a factor is
// enabled is a conflict — disable first.
func (s *MFAService) Setup(user *models.User, origin Origin) (*MFASetup, error) {
	var cfg models.MFAConfig
	err := s.DB.First(&cfg, "user_id = ?", user.ID).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err == nil && cfg.TOTPEnabled {
		return nil, ErrSecondFactorConflict
	}

	key, genErr := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
	})
	if genErr != nil {
		return nil, genErr
	}

	encrypted, encErr := utils.EncryptAESGCM(key.Secret())
	if encErr != nil {
		return nil, encErr
	}

	if err == gorm.ErrRecordNotFound {
		cfg = models.MFAConfig{UserID: user.ID, TOTPSecret: encrypted}
		if createErr := s.DB.Create(&cfg).Error; createErr != nil {
			return nil, createErr
		}
	} else {
		if updateErr := s.DB.Model(&cfg).Updates(map[string]interface{}{
			"totp_secret":      encrypted,
			"totp_enabled":     false,
			"totp_verified_at": nil,
		}).Error; updateErr != nil {
			return nil, updateErr
		}
	}

	return &MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// Enable confirms the pending secret with a live code and turns the factor
// on. The returned recovery codes are shown exactly once.
func (s *MFAService) Enable(user *models.User, code string, origin Origin) ([]string, error) {
	var cfg models.MFAConfig
	if err := s.DB.First(&cfg, "user_id = ?", user.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSecondFactorConflict
		}
		return nil, err
	}
	if cfg.TOTPEnabled || cfg.TOTPSecret == "" {
		return nil, ErrSecondFactorConflict
	}

	secret := utils.DecryptOrPlaintext(cfg.TOTPSecret)
	if !ValidateTOTPCode(secret, code) {
		return nil, ErrInvalidSecondFactorCode
	}

	codes, hashJSON, err := generateRecoveryCodes(recoveryCodeCount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.DB.Model(&cfg).Updates(map[string]interface{}{
		"totp_enabled":     true,
		"totp_verified_at": now,
		"recovery_codes":   hashJSON,
		"recovery_count":   len(codes),
		"failed_attempts":  0,
		"locked_until":     nil,
	}).Error; err != nil {
		return nil, err
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &user.ID,
		Action:       models.Action2FAEnabled,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"recovery_codes": len(codes)},
		IPAddress:    origin.IP,
		RequestID:    origin.RequestID,
	})

	return codes, nil
}

// Disable tears the factor down. It accepts either a live TOTP code or the
// account password, so a lost authenticator does not strand the account.
func (s *MFAService) Disable(user *models.User, code, password string, origin Origin) error {
	var cfg models.MFAConfig
	if err := s.DB.First(&cfg, "user_id = ?", user.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrSecondFactorConflict
		}
		return err
	}
	if !cfg.TOTPEnabled {
		return ErrSecondFactorConflict
	}

	method := ""
	if code != "" && ValidateTOTPCode(utils.DecryptOrPlaintext(cfg.TOTPSecret), code) {
		method = "totp"
	} else if password != "" && utils.CheckPassword(password, user.PasswordHash) {
		method = "password"
	}
	if method == "" {
		return ErrInvalidSecondFactorCode
	}

	if err := s.DB.Delete(&cfg).Error; err != nil {
		return err
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &user.ID,
		Action:       models.Action2FADisabled,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"method": method},
		IPAddress:    origin.IP,
		RequestID:    origin.RequestID,
	})

	return nil
}

// RegenerateRecoveryCodes replaces the whole recovery set. Only a live
// TOTP code authorizes this; a stolen recovery code must not be able to
// mint more of itself.
func (s *MFAService) RegenerateRecoveryCodes(user *models.User, code string, origin Origin) ([]string, error) {
	var cfg models.MFAConfig
	if err := s.DB.First(&cfg, "user_id = ?", user.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSecondFactorConflict
		}
		return nil, err
	}
	if !cfg.TOTPEnabled {
		return nil, ErrSecondFactorConflict
	}

	if !ValidateTOTPCode(utils.DecryptOrPlaintext(cfg.TOTPSecret), code) {
		return nil, ErrInvalidSecondFactorCode
	}

	codes, hashJSON, err := generateRecoveryCodes(recoveryCodeCount)
	if err != nil {
		return nil, err
	}

	if err := s.DB.Model(&cfg).Updates(map[string]interface{}{
		"recovery_codes": hashJSON,
		"recovery_count": len(codes),
	}).Error; err != nil {
		return nil, err
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &user.ID,
		Action:       models.ActionRecoveryRegen,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"recovery_codes": len(codes)},
		IPAddress:    origin.IP,
		RequestID:    origin.RequestID,
	})

	return codes, nil
}

// Status reports the factor's current state without exposing the secret.
func (s *MFAService) Status(userID uuid.UUID) (*MFAStatus, error) {
	var cfg models.MFAConfig
	if err := s.DB.First(&cfg, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &MFAStatus{}, nil
		}
		return nil, err
	}

	return &MFAStatus{
		Enabled:                cfg.TOTPEnabled,
		PendingSetup:           !cfg.TOTPEnabled && cfg.TOTPSecret != "",
		VerifiedAt:             cfg.TOTPVerifiedAt,
		RecoveryCodesRemaining: cfg.RecoveryCount,
	}, nil
}
