// Package payment talks to the hosted card checkout (Stripe Checkout).
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"
)

// ErrSignatureInvalid is returned when a webhook payload fails signature verification.
var ErrSignatureInvalid = errors.New("payment: invalid webhook signature")

// Webhook event kinds that change order state. Everything else is acknowledged and ignored.
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventAsyncPaymentSucceeded  = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed     = "checkout.session.async_payment_failed"
	EventCheckoutSessionExpired = "checkout.session.expired"
)

const (
	currencyBRL     = "brl"
	metadataOrderID = "order_id"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the StripeProvider.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Backends      *stripe.Backends
	Logger        *zap.Logger

	sessions stripeSessionAPI
}

// StripeProvider creates checkout sessions and verifies webhook payloads.
type StripeProvider struct {
	sessions      stripeSessionAPI
	webhookSecret string
	successURL    string
	cancelURL     string
	logger        *zap.Logger
}

// NewStripeProvider builds a provider backed by the Stripe API.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	sessions := cfg.sessions
	if sessions == nil {
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StripeProvider{
		sessions:      sessions,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		logger:        logger,
	}, nil
}

// CheckoutRequest describes the order being paid through the hosted checkout.
type CheckoutRequest struct {
	OrderID       string
	CustomerEmail string
	Description   string
	Total         decimal.Decimal
}

// CheckoutSession is the hosted checkout the customer is redirected to.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// CreateCheckoutSession opens a payment-mode session with a single BRL line
// for the order total. The order id travels in the session metadata.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	amount := toCents(req.Total)
	if amount <= 0 {
		return CheckoutSession{}, fmt.Errorf("stripe: invalid amount %s", req.Total.StringFixed(2))
	}

	name := req.Description
	if name == "" {
		name = "Pedido " + req.OrderID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		Locale:            stripe.String("pt-BR"),
		Metadata:          map[string]string{metadataOrderID: req.OrderID},
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currencyBRL),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataOrderID: req.OrderID},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + req.OrderID)
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	session, err := p.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger.Info("stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("order_id", req.OrderID),
		zap.Int64("amount", amount),
	)

	out := CheckoutSession{ID: session.ID, URL: session.URL}
	if session.ExpiresAt != 0 {
		out.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return out, nil
}

// WebhookEvent is the part of a verified webhook the order flow acts on.
type WebhookEvent struct {
	ID            string
	Type          string
	SessionID     string
	OrderID       string
	PaymentStatus string
}

// Paid reports whether the event confirms payment of the session.
func (e WebhookEvent) Paid() bool {
	switch e.Type {
	case EventCheckoutCompleted:
		return e.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid) ||
			e.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired)
	case EventAsyncPaymentSucceeded:
		return true
	}
	return false
}

// Failed reports whether the session can no longer be paid.
func (e WebhookEvent) Failed() bool {
	return e.Type == EventAsyncPaymentFailed || e.Type == EventCheckoutSessionExpired
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Non checkout events come back with an empty SessionID.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	out := WebhookEvent{ID: evt.ID, Type: string(evt.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") || evt.Data == nil {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	out.SessionID = session.ID
	out.OrderID = session.Metadata[metadataOrderID]
	if out.OrderID == "" {
		out.OrderID = session.ClientReferenceID
	}
	out.PaymentStatus = string(session.PaymentStatus)
	return out, nil
}

func toCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
