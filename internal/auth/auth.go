// Package auth implements admin authentication (password and TOTP second
// factor) and the authorization checks shared by the web dashboard and the
// bot's admin commands.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

// TOTPIssuer labels generated secrets in authenticator apps.
const TOTPIssuer = "LocationBot"

var (
	// ErrInvalidCredentials is returned for every failed login, whatever the cause.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNotAuthorized is returned when an account is missing or not an active admin.
	ErrNotAuthorized = errors.New("not authorized")
)

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// AccountReader is the subset of the store used for authentication.
type AccountReader interface {
	GetAccountByID(ctx context.Context, id int64) (*database.Account, error)
	GetAccountByExternalID(ctx context.Context, externalID int64) (*database.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*database.Account, error)
}

// Authenticator verifies web admin credentials.
type Authenticator struct {
	accounts AccountReader
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator over the given accounts.
func NewAuthenticator(accounts AccountReader, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{accounts: accounts, logger: logger.With("component", "authenticator")}
}

// Authenticate returns the account when it exists, is an active admin, has a
// password and the password matches. Every other outcome is
// ErrInvalidCredentials; store failures are wrapped so callers can tell them apart.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*database.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	acc, err := a.accounts.GetAccountByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		a.logger.InfoContext(ctx, "Login rejected", "reason", "unknown_user")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if !acc.IsAdmin || !acc.IsActive || !acc.PasswordHash.Valid || acc.PasswordHash.String == "" {
		a.logger.InfoContext(ctx, "Login rejected", "reason", "not_eligible", "account_id", acc.ID)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash.String), []byte(password)); err != nil {
		a.logger.InfoContext(ctx, "Login rejected", "reason", "bad_password", "account_id", acc.ID)
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// VerifySecondFactor checks a TOTP code against the current time.
// Accounts without a secret pass with any code.
func VerifySecondFactor(acc *database.Account, code string) bool {
	return VerifySecondFactorAt(acc, code, time.Now())
}

// VerifySecondFactorAt is VerifySecondFactor at a fixed instant.
func VerifySecondFactorAt(acc *database.Account, code string, at time.Time) bool {
	if acc == nil {
		return false
	}
	if !acc.HasTOTP() {
		return true
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), acc.TOTPSecret.String, at.UTC(), totpOpts)
	if err != nil {
		return false
	}
	return ok
}

// HashPassword hashes a password with bcrypt's default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// NewTOTPSecret generates a base32 TOTP secret for accountName.
func NewTOTPSecret(accountName string) (string, error) {
	if accountName == "" {
		accountName = "admin"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: accountName,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// GenerateCode returns the TOTP code for secret at t.
func GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), totpOpts)
}
