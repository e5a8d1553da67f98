package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/unsend-dev/unsend-sub000/internal/pkg/httpretry"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/httputil"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
	"github.com/unsend-dev/unsend-sub000/internal/service/ingest"
	"github.com/unsend-dev/unsend-sub000/internal/ses"
)

// snsEnvelope is the SNS wrapper around provider notifications. With raw
// message delivery enabled the event arrives bare; both shapes are accepted.
type snsEnvelope struct {
	Type         string `json:"Type"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
}

type sesEvent struct {
	EventType string `json:"eventType"`
	Mail      struct {
		MessageID string    `json:"messageId"`
		Timestamp time.Time `json:"timestamp"`
		Headers   []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"mail"`
	Bounce struct {
		BounceType        string `json:"bounceType"`
		BouncedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"bouncedRecipients"`
	} `json:"bounce"`
	Complaint struct {
		ComplainedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"complainedRecipients"`
	} `json:"complaint"`
}

func (s *Server) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}

	var envelope snsEnvelope
	raw := body
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Type != "" {
		switch envelope.Type {
		case "SubscriptionConfirmation":
			s.confirmSubscription(envelope.SubscribeURL)
			httputil.OK(w, map[string]string{"status": "subscription confirmed"})
			return
		case "Notification":
			raw = []byte(envelope.Message)
		default:
			logger.Warn("ignoring SNS message", "type", envelope.Type)
			httputil.OK(w, map[string]string{"status": "ignored"})
			return
		}
	}

	event, payload, err := parseProviderEvent(raw)
	if err != nil {
		httputil.BadRequest(w, "unparseable provider event")
		return
	}

	err = s.ingest.Process(r.Context(), event)
	switch {
	case errors.Is(err, ingest.ErrUnknownEventType), errors.Is(err, ingest.ErrMessageNotFound):
		// Acknowledged so the provider stops retrying; nothing to apply it to.
		logger.Warn("provider event dropped", "event_type", event.Type, "error", err)
		httputil.OK(w, map[string]string{"status": "dropped"})
	case err != nil:
		// Storage-level failure: let the provider redeliver.
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, map[string]string{"status": "processed", "event": payload.EventType})
	}
}

func parseProviderEvent(raw []byte) (*ingest.ProviderEvent, *sesEvent, error) {
	var payload sesEvent
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, err
	}
	if payload.EventType == "" {
		return nil, nil, errors.New("missing eventType")
	}

	var data map[string]any
	_ = json.Unmarshal(raw, &data)

	event := &ingest.ProviderEvent{
		Type:            payload.EventType,
		ProviderEmailID: payload.Mail.MessageID,
		Timestamp:       payload.Mail.Timestamp,
		Data:            data,
		BounceType:      payload.Bounce.BounceType,
	}
	for _, h := range payload.Mail.Headers {
		if strings.EqualFold(h.Name, ses.EmailIDHeader) {
			event.FallbackEmailID = h.Value
		}
	}
	for _, rcpt := range payload.Bounce.BouncedRecipients {
		event.Recipients = append(event.Recipients, rcpt.EmailAddress)
	}
	for _, rcpt := range payload.Complaint.ComplainedRecipients {
		event.Recipients = append(event.Recipients, rcpt.EmailAddress)
	}
	return event, &payload, nil
}

// confirmSubscription completes the SNS topic handshake by fetching the
// confirmation URL.
func (s *Server) confirmSubscription(subscribeURL string) {
	if !strings.HasPrefix(subscribeURL, "https://") {
		logger.Warn("refusing non-https subscription confirmation", "url", subscribeURL)
		return
	}
	go func() {
		// SNS only offers the confirmation URL a few times, so retry
		// transient failures instead of waiting for redelivery.
		client := httpretry.New(&http.Client{Timeout: 10 * time.Second}, 3)
		req, err := http.NewRequest(http.MethodGet, subscribeURL, nil)
		if err != nil {
			logger.Error("building subscription confirmation request", "error", err)
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			logger.Error("subscription confirmation failed", "error", err)
			return
		}
		resp.Body.Close()
		logger.Info("sns subscription confirmed", "status_code", resp.StatusCode)
	}()
}
