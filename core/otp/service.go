// Package otp issues and verifies the 6-digit one-time passcodes used to prove ownership of an email address.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
)

// Flow separates the signup and password-reset keyspaces.
type Flow string

const (
	FlowSignup Flow = "signup"
	FlowReset  Flow = "reset"
)

var (
	// errors
	ErrNotFound    = core.NewError(core.ErrNotFound, "No OTP found for this email")
	ErrExpired     = core.NewError(core.ErrExpired, "OTP has expired")
	ErrMismatch    = core.NewError(core.ErrMismatch, "Invalid OTP")
	ErrNotVerified = core.NewError(core.ErrNotFound, "email has not been verified")
	errUnknownFlow = errors.New("unknown OTP type")
)

var (
	NowFunc        = time.Now // mockable
	generateCodeFn = generateCode

	// codes are drawn from [codeMin, codeMin+codeSpan)
	codeMin  = int64(100000)
	codeSpan = int64(900000)

	defaultExpiry = 5 * time.Minute

	subjects       = map[Flow]string{FlowSignup: "Email Verification OTP", FlowReset: "Password Reset OTP"}
	templateByFlow = map[Flow]string{FlowSignup: core.TmplOTPSignup, FlowReset: core.TmplOTPReset}
)

// ParseFlow maps a request `type` to a Flow; empty means signup.
func ParseFlow(s string) (Flow, error) {
	switch core.CleanString(s, true /* lower */) {
	case "", "signup":
		return FlowSignup, nil
	case "reset", "password-reset", "password_reset":
		return FlowReset, nil
	}
	return "", core.NewValidationError(errUnknownFlow, core.FieldError{Field: "type", Error: errUnknownFlow.Error()})
}

type entry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	store       core.KVStore
	mailSvc     core.EmailService
	appName     string
	expiry      time.Duration
	retention   time.Duration
	verifiedTTL time.Duration
}

func NewService(conf *core.Config, store core.KVStore, mailSvc core.EmailService) *Service {
	svc := &Service{
		store:       store,
		mailSvc:     mailSvc,
		appName:     conf.AppName,
		expiry:      conf.OTP.Expiry,
		retention:   conf.OTP.Retention,
		verifiedTTL: conf.OTP.VerifiedTTL,
	}
	if svc.expiry <= 0 {
		svc.expiry = defaultExpiry
	}
	// entries must outlive their expiry so that a late verify reports Expired instead of NotFound
	if svc.retention <= svc.expiry {
		svc.retention = 3 * svc.expiry
	}
	if svc.verifiedTTL <= 0 {
		svc.verifiedTTL = 3 * svc.expiry
	}
	return svc
}

func key(email string, flow Flow) string {
	return "otp:" + string(flow) + ":" + email
}

func verifiedKey(email string, flow Flow) string {
	return "otp:verified:" + string(flow) + ":" + email
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// Issue generates a new code for (email, flow), replacing any live one, and mails it.
// A mail transport failure fails the whole operation.
func (svc *Service) Issue(ctx context.Context, email string, flow Flow) (string, error) {
	email = core.CleanString(email, true /* lower */)

	code, err := generateCodeFn()
	if err != nil {
		return "", errors.Wrap(err, "generating code")
	}
	data, err := json.Marshal(entry{Code: code, ExpiresAt: NowFunc().Add(svc.expiry)})
	if err != nil {
		return "", errors.Wrap(err, "encoding entry")
	}
	if err := svc.store.Set(ctx, key(email, flow), string(data), svc.retention); err != nil {
		return "", errors.Wrap(err, "storing code")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      svc.appName + " - " + subjects[flow],
		TemplateName: templateByFlow[flow],
		TemplateData: map[string]string{"Code": code, "ExpiresIn": humanize(svc.expiry)},
	}
	if err := svc.mailSvc.SendMessage(ctx, msg); err != nil {
		return "", errors.Wrap(err, "sending code")
	}
	return code, nil
}

// Verify checks code against the live entry for (email, flow).
// A match consumes the entry and marks the email as verified for the flow.
// An expired entry is deleted; a mismatch leaves it in place.
func (svc *Service) Verify(ctx context.Context, email string, flow Flow, code string) error {
	email = core.CleanString(email, true /* lower */)
	k := key(email, flow)

	raw, err := svc.store.Get(ctx, k)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "loading code")
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return errors.Wrap(err, "decoding entry")
	}

	if NowFunc().After(e.ExpiresAt) {
		if err := svc.store.Delete(ctx, k); err != nil {
			return errors.Wrap(err, "deleting expired code")
		}
		return ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(e.Code), []byte(core.CleanString(code))) != 1 {
		return ErrMismatch
	}

	// only the caller that takes the entry it matched gets to verify
	taken, err := svc.store.Take(ctx, k)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "consuming code")
	}
	if taken != raw {
		// reissued in between: put the new code back untouched
		if err := svc.store.Set(ctx, k, taken, svc.retention); err != nil {
			return errors.Wrap(err, "restoring code")
		}
		return ErrMismatch
	}
	if err := svc.store.Set(ctx, verifiedKey(email, flow), "1", svc.verifiedTTL); err != nil {
		return errors.Wrap(err, "marking email verified")
	}
	return nil
}

// ConsumeVerified deletes the verification mark left by a successful Verify.
func (svc *Service) ConsumeVerified(ctx context.Context, email string, flow Flow) error {
	k := verifiedKey(core.CleanString(email, true /* lower */), flow)
	if _, err := svc.store.Take(ctx, k); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrNotVerified
		}
		return errors.Wrap(err, "consuming verification")
	}
	return nil
}

func humanize(d time.Duration) string {
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	return s
}
