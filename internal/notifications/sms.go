package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMSConfig holds configuration for SMS notifications via Twilio.
// SMS is the fallback channel for sellers on feature phones that cannot
// receive push notifications.
type SMSConfig struct {
	AccountSID   string // Twilio Account SID
	AuthToken    string // Twilio Auth Token
	SenderNumber string // Twilio phone number to send from (E.164 format)
}

// SMSClient sends SMS notifications via Twilio Programmable Messaging
type SMSClient struct {
	accountSID   string
	authToken    string
	senderNumber string
	logger       *log.Logger
	client       *http.Client
}

// NewSMSClient creates a new SMS client for sending notifications.
// Returns (nil, nil) when credentials are missing so callers can run
// without SMS.
func NewSMSClient(cfg SMSConfig, logger *log.Logger) (*SMSClient, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.SenderNumber == "" {
		logger.Println("SMS: missing Twilio credentials, SMS notifications disabled")
		return nil, nil
	}

	logger.Printf("SMS: client initialized (sender=%s)", cfg.SenderNumber)

	return &SMSClient{
		accountSID:   cfg.AccountSID,
		authToken:    cfg.AuthToken,
		senderNumber: cfg.SenderNumber,
		logger:       logger,
		client:       &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// twilioMessageResponse represents a Twilio Messages API response
type twilioMessageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SendSMS sends an SMS message to the specified phone number
func (c *SMSClient) SendSMS(ctx context.Context, to, body string) error {
	if c == nil {
		return nil
	}

	apiURL := fmt.Sprintf(
		"https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json",
		c.accountSID,
	)

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", c.senderNumber)
	data.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Printf("SMS: failed to send to %s: %v", to, err)
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	var msgResp twilioMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("SMS: Twilio error (code=%d, msg=%s)", msgResp.ErrorCode, msgResp.ErrorMessage)
		return fmt.Errorf("Twilio API error: %d - %s", msgResp.ErrorCode, msgResp.ErrorMessage)
	}

	c.logger.Printf("SMS: sent successfully to %s (sid=%s, status=%s)", to, msgResp.SID, msgResp.Status)
	return nil
}

// SendNewOrderSMS tells a seller a new order arrived.
func (c *SMSClient) SendNewOrderSMS(ctx context.Context, to, productName string, quantity, totalPrice int) error {
	body := fmt.Sprintf("HaathSe: New order! %d x %s for Rs %d. Open the app or call back the buyer to confirm.", quantity, productName, totalPrice)
	return c.SendSMS(ctx, to, body)
}

// SendOrderAcceptedSMS tells a buyer the seller accepted their order.
func (c *SMSClient) SendOrderAcceptedSMS(ctx context.Context, to, productName string) error {
	body := fmt.Sprintf("HaathSe: Your order for %s was accepted by the seller.", productName)
	return c.SendSMS(ctx, to, body)
}

// SendOrderDeclinedSMS tells a buyer the seller declined their order.
func (c *SMSClient) SendOrderDeclinedSMS(ctx context.Context, to, productName string) error {
	body := fmt.Sprintf("HaathSe: Your order for %s was declined by the seller.", productName)
	return c.SendSMS(ctx, to, body)
}
