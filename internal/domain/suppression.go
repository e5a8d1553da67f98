package domain

import "time"

// SuppressionReason enumerates why an email address was suppressed.
type SuppressionReason string

const (
	ReasonHardBounce SuppressionReason = "HARD_BOUNCE"
	ReasonComplaint  SuppressionReason = "COMPLAINT"
	ReasonManual     SuppressionReason = "MANUAL"
)

// AllSuppressionReasons lists every known reason. Stats reports always
// include all of them, zero-filled.
func AllSuppressionReasons() []SuppressionReason {
	return []SuppressionReason{ReasonHardBounce, ReasonComplaint, ReasonManual}
}

// Suppression is a standing block on an address for a team. Unique per
// (team, lowercase-trimmed email); its existence is binding at enqueue time.
type Suppression struct {
	ID        string            `json:"id" db:"id"`
	TeamID    int64             `json:"team_id" db:"team_id"`
	Email     string            `json:"email" db:"email"`
	Reason    SuppressionReason `json:"reason" db:"reason"`
	Source    string            `json:"source,omitempty" db:"source"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}
