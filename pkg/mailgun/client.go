package mailgun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ovenlight/pizzeria-backend/pkg/config"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("mailgun api key is required")
	errDomainRequired = errors.New("mailgun domain is required")
	errFromRequired   = errors.New("mailgun sender address is required")
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender is the email surface the order workflow depends on.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client posts messages to the Mailgun messages API using basic auth.
type Client struct {
	httpClient *http.Client
	apiKey     string
	domain     string
	from       string
	baseURL    string
	logger     *logger.Logger
}

// NewClient validates the Mailgun credentials and returns a ready client.
func NewClient(ctx context.Context, cfg config.MailgunConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, errDomainRequired
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, errFromRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.mailgun.net"
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		domain:     domain,
		from:       from,
		baseURL:    baseURL,
		logger:     logg,
	}

	if logg != nil {
		logg.Info(ctx, "mailgun client initialized")
	}
	return c, nil
}

// Send posts the message to Mailgun's v3 messages endpoint.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient address is required")
	}

	form := url.Values{}
	form.Set("from", c.from)
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("text", msg.Text)

	endpoint := fmt.Sprintf("%s/v3/%s/messages", c.baseURL, c.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building mailgun request: %w", err)
	}
	req.SetBasicAuth("api", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending mailgun request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("mailgun responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// SetHTTPClient overrides the transport. Tests point it at a local server.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}
