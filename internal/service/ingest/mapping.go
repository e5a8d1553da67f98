package ingest

import (
	"fmt"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// eventTypeMap translates SES event names to canonical statuses. SES spells
// some multi-word types with a space and some without.
var eventTypeMap = map[string]domain.EmailStatus{
	"Send":              domain.StatusSent,
	"Delivery":          domain.StatusDelivered,
	"Bounce":            domain.StatusBounced,
	"Complaint":         domain.StatusComplained,
	"Reject":            domain.StatusRejected,
	"Open":              domain.StatusOpened,
	"Click":             domain.StatusClicked,
	"Rendering Failure": domain.StatusRenderingFailure,
	"DeliveryDelay":     domain.StatusDeliveryDelayed,
}

// MapEventType translates a provider event name into its canonical status.
func MapEventType(eventType string) (domain.EmailStatus, error) {
	status, ok := eventTypeMap[eventType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	return status, nil
}
