package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/pkg/validator"
)

// URLGateway sends SMS through a provider's GET url-campaign API.
// The provider answers "1" on success and an error id otherwise.
type URLGateway struct {
	baseURL string
	apiKey  string
	mask    string
	client  *http.Client
	phones  *validator.PhoneValidator
	logger  *logrus.Logger
}

// NewURLGateway creates a new URL gateway instance
func NewURLGateway(baseURL, apiKey, mask string, logger *logrus.Logger) *URLGateway {
	return &URLGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		mask:    mask,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		phones: validator.NewPhoneValidator(),
		logger: logger,
	}
}

// Send sends a message via the url-campaign endpoint
func (g *URLGateway) Send(ctx context.Context, phone, message string) error {
	formattedPhone, err := g.phones.Normalize(phone)
	if err != nil {
		return fmt.Errorf("invalid phone number: %w", err)
	}

	params := url.Values{}
	params.Add("key", g.apiKey)
	params.Add("list", formattedPhone)
	params.Add("source_address", g.mask)
	params.Add("message", message)

	fullURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())

	g.logger.WithFields(logrus.Fields{
		"phone": formattedPhone,
		"url":   strings.Replace(fullURL, url.QueryEscape(g.apiKey), "***MASKED***", 1),
	}).Debug("Sending SMS")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build SMS request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read SMS response: %w", err)
	}

	responseStr := strings.TrimSpace(string(body))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS API returned status %d: %s", resp.StatusCode, responseStr)
	}

	if responseStr != "1" {
		return fmt.Errorf("SMS sending failed with error code: %s", responseStr)
	}

	g.logger.WithField("phone", formattedPhone).Info("SMS sent")
	return nil
}

// GetName returns the name of this SMS gateway
func (g *URLGateway) GetName() string {
	return "URL Campaign Gateway"
}
