package http

import (
	"github.com/go-email-verify/internal/application/verification"
	"github.com/go-email-verify/internal/infrastructure/metrics"
	"github.com/go-email-verify/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
// Publisher, Signer and Metrics may be nil.
type Deps struct {
	Store     verification.Store
	Mailer    verification.Mailer
	Renderer  verification.Renderer
	Publisher sns.Publisher
	Signer    verification.TokenSigner
	Metrics   *metrics.Metrics
}
