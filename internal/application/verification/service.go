// Package verification issues and confirms one-time email codes for pending
// registrations.
//
// Per email the flow is a small state machine:
//
//	ABSENT  --send-code-->               PENDING
//	PENDING --send-code-->               PENDING (code replaced)
//	PENDING --verify(correct, in time)-> ABSENT  (confirmed)
//	PENDING --verify(any, expired)-->    ABSENT  (expired)
//	PENDING --verify(wrong, in time)-->  PENDING (mismatch, retry allowed)
//	ABSENT  --verify(any)-->             ABSENT  (not found)
//
// The store performs lookup, expiry check and removal in one atomic step, so
// a code verifies at most once even when requests race.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-email-verify/internal/domain"
	"github.com/go-email-verify/internal/infrastructure/metrics"
	"github.com/go-email-verify/internal/infrastructure/sns"
	"github.com/go-email-verify/internal/pkg/id"
	"github.com/go-email-verify/internal/pkg/otp"
	"github.com/go-email-verify/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

type SendCodeRequest struct {
	Email    string `json:"email" validate:"required"`
	Nickname string `json:"nickname" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// ConfirmResult describes a successfully confirmed registration.
// Token is empty when no signer is configured.
type ConfirmResult struct {
	RegistrationID string
	Email          string
	Nickname       string
	Token          string
}

type Service interface {
	RequestCode(ctx context.Context, req SendCodeRequest) error
	ConfirmCode(ctx context.Context, req VerifyCodeRequest) (*ConfirmResult, error)
}

// Store is the Pending-Registration Store contract. TryConsume must be
// atomic per email.
type Store interface {
	Put(ctx context.Context, reg *domain.PendingRegistration) error
	TryConsume(ctx context.Context, email, code string, now time.Time) (*domain.PendingRegistration, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type Renderer interface {
	Verification(nickname, code string, ttl time.Duration) (string, error)
}

type TokenSigner interface {
	Sign(registrationID, email, nickname string) (string, error)
}

// ServiceDeps bundles the collaborators of the service. Publisher, Signer
// and Metrics are optional.
type ServiceDeps struct {
	Store           Store
	Mailer          Mailer
	Renderer        Renderer
	Publisher       sns.Publisher
	Signer          TokenSigner
	Metrics         *metrics.Metrics
	Generate        otp.Generator
	Now             func() time.Time
	CodeTTL         time.Duration
	DeliveryTimeout time.Duration
	Subject         string
	HashPasswords   bool
}

type service struct {
	store           Store
	mailer          Mailer
	renderer        Renderer
	publisher       sns.Publisher
	signer          TokenSigner
	metrics         *metrics.Metrics
	generate        otp.Generator
	now             func() time.Time
	codeTTL         time.Duration
	deliveryTimeout time.Duration
	subject         string
	hashPasswords   bool
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:           deps.Store,
		mailer:          deps.Mailer,
		renderer:        deps.Renderer,
		publisher:       deps.Publisher,
		signer:          deps.Signer,
		metrics:         deps.Metrics,
		generate:        deps.Generate,
		now:             deps.Now,
		codeTTL:         deps.CodeTTL,
		deliveryTimeout: deps.DeliveryTimeout,
		subject:         deps.Subject,
		hashPasswords:   deps.HashPasswords,
	}
	if s.publisher == nil {
		s.publisher = sns.Noop{}
	}
	if s.generate == nil {
		s.generate = otp.Generate
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.codeTTL <= 0 {
		s.codeTTL = 10 * time.Minute
	}
	if s.deliveryTimeout <= 0 {
		s.deliveryTimeout = 10 * time.Second
	}
	if s.subject == "" {
		s.subject = "Your verification code"
	}
	return s
}

func (s *service) RequestCode(ctx context.Context, req SendCodeRequest) error {
	if err := validate.Struct(req); err != nil {
		s.metrics.SendCode(metrics.OutcomeInvalid)
		return fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}

	code, err := s.generate()
	if err != nil {
		return err
	}
	password := req.Password
	if s.hashPasswords {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			s.metrics.SendCode(metrics.OutcomeInvalid)
			return fmt.Errorf("password longer than 72 bytes: %w", domain.ErrBadRequest)
		}
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		password = string(hash)
	}

	reg := &domain.PendingRegistration{
		ID:       id.New(),
		Email:    req.Email,
		Nickname: req.Nickname,
		Password: password,
		Code:     code,
		IssuedAt: s.now(),
	}
	if err := s.store.Put(ctx, reg); err != nil {
		s.metrics.SendCode(metrics.OutcomeStoreError)
		return fmt.Errorf("store pending registration: %w", err)
	}

	// A failed delivery leaves the entry in place; a resend overwrites it.
	if err := s.deliver(ctx, reg); err != nil {
		s.metrics.SendCode(metrics.OutcomeDeliveryFailed)
		slog.Warn("verification email not delivered", "registration_id", reg.ID, "err", err)
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	s.metrics.SendCode(metrics.OutcomeSent)
	slog.Info("verification code sent", "registration_id", reg.ID)
	return nil
}

// deliver renders and sends the code email, giving up after deliveryTimeout
// even if the mailer ignores its context.
func (s *service) deliver(ctx context.Context, reg *domain.PendingRegistration) error {
	body, err := s.renderer.Verification(reg.Nickname, reg.Code, s.codeTTL)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- s.mailer.SendEmail(sendCtx, reg.Email, s.subject, body) }()

	select {
	case err = <-done:
	case <-sendCtx.Done():
		err = sendCtx.Err()
	}
	s.metrics.Delivery(time.Since(start))
	return err
}

func (s *service) ConfirmCode(ctx context.Context, req VerifyCodeRequest) (*ConfirmResult, error) {
	if err := validate.Struct(req); err != nil {
		s.metrics.VerifyCode(metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}

	reg, err := s.store.TryConsume(ctx, req.Email, req.Code, s.now())
	if err != nil {
		s.metrics.VerifyCode(verifyOutcome(err))
		return nil, err
	}

	res := &ConfirmResult{RegistrationID: reg.ID, Email: reg.Email, Nickname: reg.Nickname}

	// The code is consumed at this point; nothing below may fail the call.
	if s.signer != nil {
		tok, err := s.signer.Sign(reg.ID, reg.Email, reg.Nickname)
		if err != nil {
			slog.Warn("failed to sign verification token", "registration_id", reg.ID, "err", err)
		} else {
			res.Token = tok
		}
	}
	ev := sns.RegistrationConfirmed{
		RegistrationID: reg.ID,
		Email:          reg.Email,
		Nickname:       reg.Nickname,
		ConfirmedAt:    s.now().UTC(),
	}
	if err := s.publisher.PublishRegistrationConfirmed(ctx, ev); err != nil {
		slog.Warn("failed to publish registration confirmed event", "registration_id", reg.ID, "err", err)
	}

	s.metrics.VerifyCode(metrics.OutcomeConfirmed)
	slog.Info("registration confirmed", "registration_id", reg.ID)
	return res, nil
}

func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrExpired):
		return metrics.OutcomeExpired
	case errors.Is(err, domain.ErrCodeMismatch):
		return metrics.OutcomeMismatch
	default:
		slog.Error("pending registration store failed", "err", err)
		return metrics.OutcomeStoreError
	}
}
