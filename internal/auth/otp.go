package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"github.com/murmurnet/murmur/internal/models"
)

// OTPTTL is how long an emailed verification code stays valid.
const OTPTTL = 300 * time.Second

// Sender delivers a verification code to an email address. Production
// wiring plugs a mail provider in here; the default logs the code.
type Sender interface {
	Send(ctx context.Context, email, code string) error
}

// LogSender writes codes to the log instead of sending mail. Useful for
// development and tests.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, email, code string) error {
	s.Log.Info().Str("email", email).Str("code", code).Msg("verification code issued")
	return nil
}

// VerificationStore is the slice of the database the OTP flow needs.
type VerificationStore interface {
	UpsertVerification(ctx context.Context, email, codeHash string, expiresAt time.Time) error
	GetVerification(ctx context.Context, email string, now time.Time) (*models.EmailVerification, error)
	DeleteVerification(ctx context.Context, email string) error
}

// OTP manages the email verification code lifecycle.
type OTP struct {
	store  VerificationStore
	sender Sender
	clock  clock.Clock
}

// NewOTP builds the OTP manager.
func NewOTP(store VerificationStore, sender Sender, clk clock.Clock) *OTP {
	return &OTP{store: store, sender: sender, clock: clk}
}

// Issue generates a fresh six-digit code, stores its hash with a 300s
// expiry, and hands the plaintext code to the sender.
func (o *OTP) Issue(ctx context.Context, email string) error {
	code, err := generateCode()
	if err != nil {
		return err
	}
	expiresAt := o.clock.Now().Add(OTPTTL)
	if err := o.store.UpsertVerification(ctx, email, hashCode(code), expiresAt); err != nil {
		return err
	}
	if err := o.sender.Send(ctx, email, code); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// Verify checks a submitted code against the pending record and consumes
// the record on success. Expired or absent records fail.
func (o *OTP) Verify(ctx context.Context, email, code string) (bool, error) {
	record, err := o.store.GetVerification(ctx, email, o.clock.Now())
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(record.CodeHash), []byte(hashCode(code))) != 1 {
		return false, nil
	}
	if err := o.store.DeleteVerification(ctx, email); err != nil {
		return false, err
	}
	return true, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
