package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/ovenlight/pizzeria-backend/pkg/config"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Card carries the payment card details collected at checkout.
type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
}

// Charger is the payment surface the order workflow depends on. It returns
// the provider charge id on success.
type Charger interface {
	ChargeCard(ctx context.Context, card Card, amountCents int, description string) (string, error)
}

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	api         *client.API
	currency    string
	environment string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := &client.API{}
	api.Init(apiKey, nil)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	currency := strings.TrimSpace(strings.ToLower(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	return &Client{
		api:         api,
		currency:    currency,
		environment: env,
	}, nil
}

// ChargeCard tokenizes the card and creates a one-off charge for the amount.
func (c *Client) ChargeCard(ctx context.Context, card Card, amountCents int, description string) (string, error) {
	if amountCents <= 0 {
		return "", fmt.Errorf("charge amount must be positive, got %d", amountCents)
	}

	tokenParams := &stripe.TokenParams{
		Card: &stripe.CardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.String(card.ExpMonth),
			ExpYear:  stripe.String(card.ExpYear),
			CVC:      stripe.String(card.CVC),
		},
	}
	tokenParams.Context = ctx

	token, err := c.api.Tokens.New(tokenParams)
	if err != nil {
		return "", fmt.Errorf("tokenizing card: %w", err)
	}

	chargeParams := &stripe.ChargeParams{
		Amount:      stripe.Int64(int64(amountCents)),
		Currency:    stripe.String(c.currency),
		Description: stripe.String(description),
	}
	chargeParams.Context = ctx
	if err := chargeParams.SetSource(token.ID); err != nil {
		return "", fmt.Errorf("setting charge source: %w", err)
	}

	charge, err := c.api.Charges.New(chargeParams)
	if err != nil {
		return "", fmt.Errorf("creating charge: %w", err)
	}
	return charge.ID, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *client.API {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
