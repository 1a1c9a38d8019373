package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/shippingcomps/backend/pkg/logger"
	"github.com/shippingcomps/backend/pkg/models"
)

// TokenCrediter abstracts the token ledger operations the webhook needs
type TokenCrediter interface {
	Credit(ctx context.Context, userID string, amount int, reason, stripeSessionID string) error
	SessionCredited(ctx context.Context, stripeSessionID string) (bool, error)
}

// StripeConfig holds Stripe configuration
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceStarter  string
	PriceGrowth   string
	PriceScale    string
	SuccessURL    string
	CancelURL     string
}

// Pack is a purchasable token bundle
type Pack struct {
	Name    string `json:"name"`
	PriceID string `json:"-"`
	Tokens  int    `json:"tokens"`
	PriceUS int    `json:"price_usd"`
}

// Service handles Stripe billing: checkout sessions for token packs and the
// webhook that credits tokens after payment.
type Service struct {
	tokens TokenCrediter
	config *StripeConfig
	logger logger.Logger
}

// NewService creates a new billing service
func NewService(tokens TokenCrediter, config *StripeConfig, log logger.Logger) *Service {
	stripe.Key = config.SecretKey
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		tokens: tokens,
		config: config,
		logger: log,
	}
}

// Packs returns the purchasable token packs
func (s *Service) Packs() []Pack {
	return []Pack{
		{Name: "starter", PriceID: s.config.PriceStarter, Tokens: 5, PriceUS: 9},
		{Name: "growth", PriceID: s.config.PriceGrowth, Tokens: 20, PriceUS: 29},
		{Name: "scale", PriceID: s.config.PriceScale, Tokens: 60, PriceUS: 69},
	}
}

func (s *Service) pack(name string) (Pack, error) {
	for _, p := range s.Packs() {
		if p.Name == name {
			return p, nil
		}
	}
	return Pack{}, fmt.Errorf("invalid pack: %s", name)
}

// CreateCheckoutSession creates a one-time payment checkout session for a
// token pack. The user ID and token count ride in the session metadata so the
// webhook can credit the right account.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, packName string) (*models.CheckoutResponse, error) {
	p, err := s.pack(packName)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.config.SuccessURL),
		CancelURL:  stripe.String(s.config.CancelURL),
		Metadata: map[string]string{
			"user_id": userID,
			"pack":    p.Name,
			"tokens":  strconv.Itoa(p.Tokens),
		},
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info("checkout session created", "user_id", userID, "pack", p.Name, "session", sess.ID)

	return &models.CheckoutResponse{
		SessionID: sess.ID,
		URL:       sess.URL,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// HandleWebhook verifies and processes a Stripe webhook delivery
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.logger.Info("stripe webhook received", "type", event.Type)

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	default:
		s.logger.Debug("unhandled webhook event type", "type", event.Type)
	}
	return nil
}

// handleCheckoutCompleted credits the purchased tokens. Stripe retries
// webhook deliveries, so crediting is idempotent per session ID.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	userID, ok := sess.Metadata["user_id"]
	if !ok || userID == "" {
		return fmt.Errorf("user_id not found in session metadata")
	}
	tokens, err := strconv.Atoi(sess.Metadata["tokens"])
	if err != nil || tokens <= 0 {
		return fmt.Errorf("invalid token count in session metadata: %q", sess.Metadata["tokens"])
	}

	credited, err := s.tokens.SessionCredited(ctx, sess.ID)
	if err != nil {
		return err
	}
	if credited {
		s.logger.Info("session already credited, skipping", "session", sess.ID)
		return nil
	}

	reason := fmt.Sprintf("purchase: %s pack", sess.Metadata["pack"])
	if err := s.tokens.Credit(ctx, userID, tokens, reason, sess.ID); err != nil {
		return err
	}

	s.logger.Info("tokens credited", "user_id", userID, "tokens", tokens, "session", sess.ID)
	return nil
}
