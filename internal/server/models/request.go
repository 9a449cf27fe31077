package models

import "time"

// Category groups request kinds that share a lifecycle and an HTTP surface.
type Category string

const (
	CategoryService Category = "service"
	CategoryLaptop  Category = "laptop"
)

// Kind is the discriminant of a request payload.
type Kind string

const (
	KindService Kind = "SERVICE"
	KindSell    Kind = "SELL"
	KindBuy     Kind = "BUY_REQUIREMENT"
)

// Category returns the lifecycle family the kind belongs to, or "" for an
// unknown kind.
func (k Kind) Category() Category {
	switch k {
	case KindService:
		return CategoryService
	case KindSell, KindBuy:
		return CategoryLaptop
	default:
		return ""
	}
}

// Kinds lists the request kinds of a category.
func (c Category) Kinds() []Kind {
	switch c {
	case CategoryService:
		return []Kind{KindService}
	case CategoryLaptop:
		return []Kind{KindSell, KindBuy}
	default:
		return nil
	}
}

// Status is a request lifecycle status. Its meaning depends on the category.
type Status string

const (
	StatusNew Status = "NEW"

	StatusDiagnosing Status = "DIAGNOSING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReady      Status = "READY"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"

	StatusUnderReview Status = "UNDER_REVIEW"
	StatusContacted   Status = "CONTACTED"
	StatusOfferGiven  Status = "OFFER_GIVEN"
	StatusCompleted   Status = "COMPLETED"
	StatusRejected    Status = "REJECTED"
)

// Owner is the submitting user's contact card, populated on admin listings.
type Owner struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Request is a service, sell or buy ticket. Payload never changes after
// creation; Status and AdminNotes are admin-owned.
type Request struct {
	ID         string
	OwnerID    string
	Kind       Kind
	Payload    Payload
	Status     Status
	AdminNotes string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Owner *Owner
}

// RequestFilter narrows admin listings. Empty fields match everything.
type RequestFilter struct {
	Category Category
	Kind     Kind
	Status   Status
}
