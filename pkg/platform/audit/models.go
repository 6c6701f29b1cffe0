package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers record creation and changes to student data.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected sign-ins and rejected writes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    string        `json:"userId,omitempty"`
	Email     string        `json:"email,omitempty"`
	Action    string        `json:"action"`
	Decision  string        `json:"decision,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	// Enrichment from the request context.
	RequestID string `json:"requestId,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
	Device    string `json:"device,omitempty"`
}

type AuditEvent string

const (
	EventStudentRegistered     AuditEvent = "student_registered"
	EventStudentSignedIn       AuditEvent = "student_signed_in"
	EventSignInRejected        AuditEvent = "sign_in_rejected"
	EventProfileViewed         AuditEvent = "profile_viewed"
	EventProfileUpdated        AuditEvent = "profile_updated"
	EventProfileUpdateRejected AuditEvent = "profile_update_rejected"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventStudentRegistered: CategoryCompliance,
	EventProfileUpdated:    CategoryCompliance,

	EventSignInRejected:        CategorySecurity,
	EventProfileUpdateRejected: CategorySecurity,

	EventStudentSignedIn: CategoryOperations,
	EventProfileViewed:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by stores that can replay a user's trail.
type Reader interface {
	ListByUser(ctx context.Context, userID string) ([]Event, error)
}
