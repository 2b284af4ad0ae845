package notifications

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNsConfig holds configuration for Apple Push Notification service
type APNsConfig struct {
	KeyPath    string // Path to .p8 key file
	KeyID      string // Key ID from Apple Developer Portal
	TeamID     string // Team ID from Apple Developer Portal
	BundleID   string // App bundle ID (e.g., in.haathse.app)
	Production bool   // Use production environment
}

// APNsClient sends push notifications via Apple Push Notification service
type APNsClient struct {
	client   *apns2.Client
	bundleID string
	logger   *log.Logger
	mu       sync.Mutex
}

// NewAPNsClient creates a new APNs client. Returns (nil, nil) when the
// config is incomplete so callers can run without push.
func NewAPNsClient(cfg APNsConfig, logger *log.Logger) (*APNsClient, error) {
	if cfg.KeyPath == "" || cfg.KeyID == "" || cfg.TeamID == "" || cfg.BundleID == "" {
		logger.Println("APNs: missing configuration, push notifications disabled")
		return nil, nil
	}

	keyBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read APNs key file: %w", err)
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode APNs key PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs key: %w", err)
	}

	ecdsaKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("APNs key is not an ECDSA private key")
	}

	authToken := &token.Token{
		AuthKey: ecdsaKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	var client *apns2.Client
	if cfg.Production {
		client = apns2.NewTokenClient(authToken).Production()
	} else {
		client = apns2.NewTokenClient(authToken).Development()
	}

	logger.Printf("APNs: client initialized (production=%v, bundle=%s)", cfg.Production, cfg.BundleID)

	return &APNsClient{
		client:   client,
		bundleID: cfg.BundleID,
		logger:   logger,
	}, nil
}

// OrderNotification carries the data for an order push.
type OrderNotification struct {
	OrderID     string
	ProductName string
	Quantity    int
	Unit        string
	BuyerName   string
	TotalPrice  int
}

// SendNewOrderNotification tells a seller a buyer has placed an order.
func (c *APNsClient) SendNewOrderNotification(deviceToken string, notif OrderNotification) error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	buyer := notif.BuyerName
	if buyer == "" {
		buyer = "a buyer"
	}

	p := payload.NewPayload().
		AlertTitle("New order on HaathSe").
		AlertBody(fmt.Sprintf("%s ordered %d %s of %s for %d rupees",
			buyer, notif.Quantity, notif.Unit, notif.ProductName, notif.TotalPrice)).
		Sound("default").
		Custom("order_id", notif.OrderID).
		Custom("notification_type", "new_order")

	return c.push(deviceToken, p, 24*time.Hour)
}

// SendOrderSettledNotification tells a buyer their order was accepted or
// declined by the seller.
func (c *APNsClient) SendOrderSettledNotification(deviceToken, orderID, productName, status string) error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var title, body string
	switch status {
	case "accepted":
		title = "Order accepted"
		body = fmt.Sprintf("The seller accepted your order for %s.", productName)
	case "declined":
		title = "Order declined"
		body = fmt.Sprintf("The seller declined your order for %s.", productName)
	default:
		return nil
	}

	p := payload.NewPayload().
		AlertTitle(title).
		AlertBody(body).
		Sound("default").
		Custom("order_id", orderID).
		Custom("notification_type", "order_settled")

	return c.push(deviceToken, p, 24*time.Hour)
}

// SendTestNotification sends a test notification
func (c *APNsClient) SendTestNotification(deviceToken, message string) error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := payload.NewPayload().
		AlertTitle("HaathSe Test").
		AlertBody(message).
		Sound("default")

	return c.push(deviceToken, p, 1*time.Hour)
}

func (c *APNsClient) push(deviceToken string, p *payload.Payload, ttl time.Duration) error {
	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       c.bundleID,
		Payload:     p,
		Expiration:  time.Now().Add(ttl),
	}

	res, err := c.client.Push(notification)
	if err != nil {
		c.logger.Printf("APNs: failed to send notification: %v", err)
		return err
	}

	if res.StatusCode != 200 {
		c.logger.Printf("APNs: notification rejected (status=%d, reason=%s)", res.StatusCode, res.Reason)
		return fmt.Errorf("APNs rejected notification: %s", res.Reason)
	}

	c.logger.Printf("APNs: notification sent successfully to %s...", deviceToken[:min(16, len(deviceToken))])
	return nil
}
