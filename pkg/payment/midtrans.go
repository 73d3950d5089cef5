package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/sirupsen/logrus"
)

// MidtransConfig holds the credentials for the Snap API
type MidtransConfig struct {
	ServerKey    string
	IsProduction bool
	BaseURL      string // sends Snap calls to this host instead, e.g. a local mock
	FinishURL    string
	Timeout      time.Duration
}

// MidtransGateway opens Snap checkout sessions
type MidtransGateway struct {
	config MidtransConfig
	snap   snap.Client
	logger *logrus.Logger
}

// NewMidtransGateway creates a Snap client bound to its own credentials
func NewMidtransGateway(cfg MidtransConfig, logger *logrus.Logger) *MidtransGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	env := midtrans.Sandbox
	if cfg.IsProduction {
		env = midtrans.Production
	}

	g := &MidtransGateway{config: cfg, logger: logger}
	g.snap.New(cfg.ServerKey, env)

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
		if err != nil || base.Host == "" {
			logger.WithField("base_url", cfg.BaseURL).Warn("Ignoring invalid payment base URL")
		} else {
			transport = &rebaseTransport{base: base, next: http.DefaultTransport}
		}
	}

	httpClient := midtrans.GetHttpClient(env)
	httpClient.HttpClient = &http.Client{Timeout: timeout, Transport: transport}
	g.snap.HttpClient = httpClient

	return g
}

// rebaseTransport rewrites the Snap host while keeping the request path
type rebaseTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *rebaseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.base.Scheme
	out.URL.Host = t.base.Host
	out.URL.Path = t.base.Path + req.URL.Path
	out.Host = t.base.Host
	return t.next.RoundTrip(out)
}

// CreateSession opens a Snap transaction and returns its token and redirect URL
func (g *MidtransGateway) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	if g.config.ServerKey == "" {
		return nil, &GatewayError{Message: "payment gateway not configured: missing server key"}
	}
	if err := ctx.Err(); err != nil {
		return nil, &GatewayError{Message: "request cancelled", Err: err}
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	}
	if len(req.Items) > 0 {
		items := make([]midtrans.ItemDetails, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, midtrans.ItemDetails{
				ID:    item.ID,
				Name:  truncate(item.Name, 50),
				Price: item.Price,
				Qty:   int32(item.Quantity),
			})
		}
		snapReq.Items = &items
	}
	if g.config.FinishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: g.config.FinishURL}
	}

	g.logger.WithFields(logrus.Fields{
		"order_id": req.OrderID,
		"amount":   req.Amount,
		"items":    len(req.Items),
	}).Info("Creating Midtrans Snap session")

	resp, snapErr := g.snap.CreateTransaction(snapReq)
	if snapErr != nil {
		g.logger.WithFields(logrus.Fields{
			"order_id":    req.OrderID,
			"status_code": snapErr.StatusCode,
		}).Error("Midtrans Snap rejected session")
		return nil, &GatewayError{
			StatusCode: snapErr.StatusCode,
			Message:    snapErr.Message,
			Err:        snapErr.RawError,
		}
	}

	if resp == nil || resp.Token == "" || resp.RedirectURL == "" {
		return nil, &GatewayError{Message: "no token returned"}
	}

	g.logger.WithField("order_id", req.OrderID).Info("Midtrans Snap session created")

	return &Session{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		Raw: map[string]interface{}{
			"token":        resp.Token,
			"redirect_url": resp.RedirectURL,
		},
	}, nil
}

// Notification is the HTTP notification Midtrans posts on status changes
type Notification struct {
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	TransactionTime   string `json:"transaction_time"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	SettlementTime    string `json:"settlement_time,omitempty"`
}

// ParseNotification decodes a notification body
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("invalid notification payload: %w", err)
	}

	if n.OrderID == "" {
		return nil, fmt.Errorf("invalid notification payload: missing order_id")
	}
	if n.TransactionStatus == "" {
		return nil, fmt.Errorf("invalid notification payload: missing transaction_status")
	}

	return &n, nil
}

// Signature computes SHA512(order_id + status_code + gross_amount + server_key)
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks the notification's signature_key against the server key
func (n *Notification) VerifySignature(serverKey string) bool {
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	got := strings.ToLower(n.SignatureKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
