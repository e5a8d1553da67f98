package campaign

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
)

// unsubscribeID joins the contact and campaign ids into the signed link
// identifier. Both sides are UUIDs, so the joined form has a fixed shape.
func unsubscribeID(contactID, campaignID string) string {
	return contactID + "-" + campaignID
}

// parseUnsubscribeID splits a link identifier back into its contact and
// campaign UUIDs.
func parseUnsubscribeID(id string) (contactID, campaignID string, err error) {
	const uuidLen = 36
	if len(id) != uuidLen*2+1 || id[uuidLen] != '-' {
		return "", "", ErrInvalidUnsubscribeSignature
	}
	contactID, campaignID = id[:uuidLen], id[uuidLen+1:]
	if _, err := uuid.Parse(contactID); err != nil {
		return "", "", ErrInvalidUnsubscribeSignature
	}
	if _, err := uuid.Parse(campaignID); err != nil {
		return "", "", ErrInvalidUnsubscribeSignature
	}
	return contactID, campaignID, nil
}

func (s *Service) sign(id string) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

// UnsubscribeURL builds the signed one-click unsubscribe link embedded in a
// campaign message.
func (s *Service) UnsubscribeURL(contactID, campaignID string) string {
	id := unsubscribeID(contactID, campaignID)
	return fmt.Sprintf("%s/unsubscribe?id=%s&hash=%s", s.baseURL, url.QueryEscape(id), s.sign(id))
}

// VerifyToken checks a link's signature and resolves the contact it names.
// Comparison is constant time.
func (s *Service) VerifyToken(ctx context.Context, id, hash string) (*domain.Contact, string, error) {
	if !hmac.Equal([]byte(s.sign(id)), []byte(hash)) {
		return nil, "", ErrInvalidUnsubscribeSignature
	}
	contactID, campaignID, err := parseUnsubscribeID(id)
	if err != nil {
		return nil, "", err
	}
	contact, err := s.repo.GetContact(ctx, contactID)
	if err != nil {
		return nil, "", err
	}
	return contact, campaignID, nil
}

// Unsubscribe processes a signed unsubscribe link. Repeating the request for
// an already-unsubscribed contact succeeds without touching the campaign
// counter.
func (s *Service) Unsubscribe(ctx context.Context, id, hash string) (*domain.Contact, error) {
	contact, campaignID, err := s.VerifyToken(ctx, id, hash)
	if err != nil {
		return nil, err
	}
	if !contact.Subscribed {
		return contact, nil
	}

	reason := domain.UnsubscribedByLink
	if err := s.repo.SetContactSubscription(ctx, contact.ID, false, &reason); err != nil {
		return nil, err
	}
	if err := s.repo.IncrementUnsubscribed(ctx, campaignID); err != nil {
		logger.Error("failed to bump campaign unsubscribe counter", "campaign_id", campaignID, "error", err)
	}
	contact.Subscribed = false
	contact.UnsubscribeReason = &reason
	logger.Info("contact unsubscribed", "contact_id", contact.ID, "campaign_id", campaignID)
	return contact, nil
}

// Resubscribe reverses an unsubscribe via the same signed link. The campaign
// counter moves back only when the contact actually flips state.
func (s *Service) Resubscribe(ctx context.Context, id, hash string) (*domain.Contact, error) {
	contact, campaignID, err := s.VerifyToken(ctx, id, hash)
	if err != nil {
		return nil, err
	}
	if contact.Subscribed {
		return contact, nil
	}
	if err := s.repo.SetContactSubscription(ctx, contact.ID, true, nil); err != nil {
		return nil, err
	}
	if err := s.repo.DecrementUnsubscribed(ctx, campaignID); err != nil {
		logger.Error("failed to reverse campaign unsubscribe counter", "campaign_id", campaignID, "error", err)
	}
	contact.Subscribed = true
	contact.UnsubscribeReason = nil
	return contact, nil
}
