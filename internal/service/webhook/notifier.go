package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, keyed by
// the webhook's secret.
const SignatureHeader = "X-Webhook-Signature"

const deliverTimeout = 10 * time.Second

// Notifier delivers status events to matching team webhooks. Deliveries run
// asynchronously and failures are logged, not retried; subscribers that need
// stronger guarantees poll the message event log.
type Notifier struct {
	svc    *Service
	client *http.Client
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier over the webhook service. client may be nil
// to use a default with the delivery timeout.
func NewNotifier(svc *Service, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: deliverTimeout}
	}
	return &Notifier{svc: svc, client: client}
}

// eventPayload is the body POSTed to subscribers.
type eventPayload struct {
	Event   domain.EmailStatus `json:"event"`
	Payload struct {
		EmailID    string         `json:"emailId"`
		TeamID     int64          `json:"teamId"`
		CampaignID string         `json:"campaignId,omitempty"`
		To         []string       `json:"to"`
		From       string         `json:"from"`
		Subject    string         `json:"subject"`
		Status     string         `json:"status"`
		Data       map[string]any `json:"data,omitempty"`
		Timestamp  time.Time      `json:"timestamp"`
	} `json:"payload"`
}

// Notify fans one accepted status event out to the team's matching webhooks.
// It returns immediately; deliveries happen in the background.
func (n *Notifier) Notify(email *domain.Email, status domain.EmailStatus, data map[string]any) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.fanout(email, status, data)
	}()
}

// Flush blocks until all in-flight deliveries finish. Used on shutdown and
// in tests.
func (n *Notifier) Flush() {
	n.wg.Wait()
}

func (n *Notifier) fanout(email *domain.Email, status domain.EmailStatus, data map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	hooks, err := n.svc.subscriptions(ctx, email.TeamID)
	if err != nil {
		logger.Error("webhook lookup failed, event dropped", "team_id", email.TeamID, "status", string(status), "error", err)
		return
	}

	var body []byte
	for i := range hooks {
		if !hooks[i].Matches(status, email.DomainID) {
			continue
		}
		if body == nil {
			p := eventPayload{Event: status}
			p.Payload.EmailID = email.ID
			p.Payload.TeamID = email.TeamID
			p.Payload.CampaignID = email.CampaignID
			p.Payload.To = email.To
			p.Payload.From = email.From
			p.Payload.Subject = email.Subject
			p.Payload.Status = string(status)
			p.Payload.Data = data
			p.Payload.Timestamp = time.Now().UTC()
			body, err = json.Marshal(p)
			if err != nil {
				logger.Error("webhook payload marshal failed", "email_id", email.ID, "error", err)
				return
			}
		}
		n.deliver(ctx, &hooks[i], body)
	}
}

func (n *Notifier) deliver(ctx context.Context, w *domain.Webhook, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		logger.Error("webhook request build failed", "webhook_id", w.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sign(w.Secret, body))

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warn("webhook delivery failed", "webhook_id", w.ID, "url", w.URL, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.Warn("webhook delivery rejected", "webhook_id", w.ID, "url", w.URL, "status_code", resp.StatusCode)
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
