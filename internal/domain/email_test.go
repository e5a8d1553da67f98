package domain

import "testing"

func TestShouldAdvance(t *testing.T) {
	ptr := func(s EmailStatus) *EmailStatus { return &s }

	tests := []struct {
		name    string
		current *EmailStatus
		next    EmailStatus
		want    bool
	}{
		{"unset accepts anything", nil, StatusQueued, true},
		{"sent to delivered", ptr(StatusSent), StatusDelivered, true},
		{"delivered rejects late sent", ptr(StatusDelivered), StatusSent, false},
		{"bounce then delivery lands delivered", ptr(StatusBounced), StatusDelivered, true},
		{"delivered rejects late bounce", ptr(StatusDelivered), StatusBounced, false},
		{"opened to clicked", ptr(StatusOpened), StatusClicked, true},
		{"clicked rejects open", ptr(StatusClicked), StatusOpened, false},
		{"complaint outranks clicked", ptr(StatusClicked), StatusComplained, true},
		{"duplicate delay rejected", ptr(StatusDeliveryDelayed), StatusDeliveryDelayed, false},
		{"equal rank never advances", ptr(StatusDelivered), StatusDelivered, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldAdvance(tt.current, tt.next); got != tt.want {
				t.Errorf("ShouldAdvance(%v, %s) = %v, want %v", tt.current, tt.next, got, tt.want)
			}
		})
	}
}

func TestEmailStatusValid(t *testing.T) {
	if !StatusRenderingFailure.Valid() {
		t.Error("RENDERING_FAILURE should be a valid status")
	}
	if EmailStatus("Delivery").Valid() {
		t.Error("provider-native event names are not canonical statuses")
	}
	if got := EmailStatus("bogus").Rank(); got != -1 {
		t.Errorf("unknown status rank = %d, want -1", got)
	}
}

func TestEmailCategory(t *testing.T) {
	campaign := &Email{CampaignID: "c1"}
	if campaign.Category() != CategoryMarketing {
		t.Error("campaign copy should dispatch as marketing")
	}
	direct := &Email{}
	if direct.Category() != CategoryTransactional {
		t.Error("direct send should dispatch as transactional")
	}
}

func TestDomainVerified(t *testing.T) {
	for status, want := range map[DomainStatus]bool{
		DomainSuccess:    true,
		DomainPending:    false,
		DomainNotStarted: false,
		DomainFailed:     false,
	} {
		d := &SendingDomain{Status: status}
		if d.Verified() != want {
			t.Errorf("Verified() with status %s = %v, want %v", status, d.Verified(), want)
		}
	}
}
