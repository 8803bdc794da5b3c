package approval

import (
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
)

// Status is the lifecycle state of an approval request. Requests are never
// deleted, only status-transitioned, to preserve audit continuity.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Notification markers recorded in NotificationsSent, used to guarantee
// at-most-one notification per event type per request.
const (
	notifiedApprovalNeeded = "approval_needed"
	notifiedEscalation     = "escalation"
)

// Request wraps a queued Decision awaiting human review.
type Request struct {
	ID       string             `json:"id"`
	Decision *autonomy.Decision `json:"decision"`

	// Priority orders the pending list: higher risk and higher urgency
	// sort first.
	Priority int              `json:"priority"`
	Urgency  autonomy.Urgency `json:"urgency"`

	ExpiresAt         time.Time `json:"expires_at"`
	NotificationsSent []string  `json:"notifications_sent"`

	Status     Status     `json:"status"`
	Reviewer   string     `json:"reviewer,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	Feedback   string     `json:"feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// notified reports whether the marker is already in NotificationsSent.
func (r *Request) notified(marker string) bool {
	for _, sent := range r.NotificationsSent {
		if sent == marker {
			return true
		}
	}
	return false
}

// urgencyBump is added to the risk score when computing priority.
var urgencyBump = map[autonomy.Urgency]int{
	autonomy.UrgencyLow:      0,
	autonomy.UrgencyNormal:   5,
	autonomy.UrgencyHigh:     15,
	autonomy.UrgencyCritical: 30,
}

// computePriority derives the queue priority from risk score and urgency.
func computePriority(decision *autonomy.Decision) int {
	score := 0
	if decision.Assessment != nil {
		score = int(decision.Assessment.Score)
	}
	return score + urgencyBump[decision.Action.Metadata.Urgency]
}
