package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationTypeOrder          NotificationType = "order"
	NotificationTypeContactRequest NotificationType = "contact_request"
	NotificationTypeReview         NotificationType = "review"
	NotificationTypeSystem         NotificationType = "system"
	NotificationTypeSupport        NotificationType = "support"
)

// NotificationStatus is empty for plain informational notifications. Only
// notifications created as pending can be resolved.
type NotificationStatus string

const (
	NotificationStatusNone     NotificationStatus = ""
	NotificationStatusPending  NotificationStatus = "pending"
	NotificationStatusAccepted NotificationStatus = "accepted"
	NotificationStatusRejected NotificationStatus = "rejected"
)

func (s NotificationStatus) IsResolved() bool {
	return s == NotificationStatusAccepted || s == NotificationStatusRejected
}

// Resolution is the outcome an addressee applies to a pending notification.
type Resolution string

const (
	ResolutionAccepted Resolution = "accepted"
	ResolutionRejected Resolution = "rejected"
)

func ParseResolution(s string) (Resolution, bool) {
	switch Resolution(s) {
	case ResolutionAccepted, ResolutionRejected:
		return Resolution(s), true
	}
	return "", false
}

func (r Resolution) Status() NotificationStatus {
	return NotificationStatus(r)
}

type OrderEventKind string

const (
	OrderEventPlaced    OrderEventKind = "order_placed"
	OrderEventAccepted  OrderEventKind = "order_accepted"
	OrderEventDelivered OrderEventKind = "order_delivered"
	OrderEventCompleted OrderEventKind = "order_completed"
	OrderEventCancelled OrderEventKind = "order_cancelled"
	// OrderEventReviewReminder asks the client to review a delivered order.
	OrderEventReviewReminder OrderEventKind = "review_received"
)

// OrderEventForStatus maps the status an order just entered to the event
// announced to the counterparty.
func OrderEventForStatus(s OrderStatus) (OrderEventKind, bool) {
	switch s {
	case OrderStatusInProgress:
		return OrderEventAccepted, true
	case OrderStatusDelivered:
		return OrderEventDelivered, true
	case OrderStatusCompleted:
		return OrderEventCompleted, true
	case OrderStatusCancelled:
		return OrderEventCancelled, true
	}
	return "", false
}

type PayloadKind string

const (
	PayloadOrderEvent       PayloadKind = "order_event"
	PayloadPromotionRequest PayloadKind = "promotion_request"
	PayloadPromotionOutcome PayloadKind = "promotion_outcome"
	PayloadReviewReceived   PayloadKind = "review_received"
	PayloadSystemMessage    PayloadKind = "system_message"
)

// Payload is the closed set of notification bodies. The variant decides the
// stored type tag, the initial status and the rendered text.
type Payload interface {
	Kind() PayloadKind
	Type() NotificationType
	InitialStatus() NotificationStatus
	Text() string
}

type OrderEvent struct {
	OrderID uint           `json:"orderId"`
	Event   OrderEventKind `json:"event"`
}

func (OrderEvent) Kind() PayloadKind                 { return PayloadOrderEvent }
func (OrderEvent) Type() NotificationType            { return NotificationTypeOrder }
func (OrderEvent) InitialStatus() NotificationStatus { return NotificationStatusNone }

func (p OrderEvent) Text() string {
	switch p.Event {
	case OrderEventPlaced:
		return fmt.Sprintf("You received a new order #%d", p.OrderID)
	case OrderEventAccepted:
		return fmt.Sprintf("Your order #%d was accepted and is in progress", p.OrderID)
	case OrderEventDelivered:
		return fmt.Sprintf("Your order #%d has been delivered", p.OrderID)
	case OrderEventCompleted:
		return fmt.Sprintf("Order #%d was marked as completed", p.OrderID)
	case OrderEventCancelled:
		return fmt.Sprintf("Order #%d was cancelled", p.OrderID)
	case OrderEventReviewReminder:
		return fmt.Sprintf("Order #%d is ready for your review", p.OrderID)
	}
	return fmt.Sprintf("Order #%d was updated", p.OrderID)
}

// PromotionRequest asks an admin to grant the freelancer role. Copies sent
// to several admins share RequestID.
type PromotionRequest struct {
	RequestID string `json:"requestId"`
	SenderID  uint   `json:"senderId"`
}

func (PromotionRequest) Kind() PayloadKind                 { return PayloadPromotionRequest }
func (PromotionRequest) Type() NotificationType            { return NotificationTypeContactRequest }
func (PromotionRequest) InitialStatus() NotificationStatus { return NotificationStatusPending }

func (p PromotionRequest) Text() string {
	return fmt.Sprintf("User #%d requested freelancer status", p.SenderID)
}

type PromotionOutcome struct {
	RequestID string     `json:"requestId"`
	Outcome   Resolution `json:"outcome"`
}

func (PromotionOutcome) Kind() PayloadKind                 { return PayloadPromotionOutcome }
func (PromotionOutcome) Type() NotificationType            { return NotificationTypeSystem }
func (PromotionOutcome) InitialStatus() NotificationStatus { return NotificationStatusNone }

func (p PromotionOutcome) Text() string {
	if p.Outcome == ResolutionAccepted {
		return "Your freelancer request was approved"
	}
	return "Your freelancer request was rejected"
}

type ReviewReceived struct {
	OrderID  uint `json:"orderId"`
	ReviewID uint `json:"reviewId"`
	Rating   int  `json:"rating"`
}

func (ReviewReceived) Kind() PayloadKind                 { return PayloadReviewReceived }
func (ReviewReceived) Type() NotificationType            { return NotificationTypeReview }
func (ReviewReceived) InitialStatus() NotificationStatus { return NotificationStatusNone }

func (p ReviewReceived) Text() string {
	return fmt.Sprintf("You received a %d-star review for order #%d", p.Rating, p.OrderID)
}

type SystemMessage struct {
	Message string `json:"message"`
}

func (SystemMessage) Kind() PayloadKind                 { return PayloadSystemMessage }
func (SystemMessage) Type() NotificationType            { return NotificationTypeSystem }
func (SystemMessage) InitialStatus() NotificationStatus { return NotificationStatusNone }
func (p SystemMessage) Text() string                    { return p.Message }

type Notification struct {
	ID        uint
	UserID    uint
	SenderID  *uint
	RequestID *string
	Type      NotificationType
	Content   string
	Payload   Payload
	Status    NotificationStatus
	IsRead    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewNotification builds an unsaved notification addressed to userID.
func NewNotification(userID uint, payload Payload) Notification {
	n := Notification{
		UserID:  userID,
		Type:    payload.Type(),
		Content: payload.Text(),
		Payload: payload,
		Status:  payload.InitialStatus(),
	}
	if req, ok := payload.(PromotionRequest); ok {
		sender := req.SenderID
		requestID := req.RequestID
		n.SenderID = &sender
		n.RequestID = &requestID
	}
	return n
}

type HistoryAction string

const (
	HistoryActionCreated  HistoryAction = "created"
	HistoryActionRead     HistoryAction = "read"
	HistoryActionResolved HistoryAction = "resolved"
)

// NotificationHistory is an append-only snapshot of a notification taken
// each time it is created or mutated.
type NotificationHistory struct {
	ID             uint
	NotificationID uint
	UserID         uint
	Type           NotificationType
	Content        string
	Status         NotificationStatus
	IsRead         bool
	Action         HistoryAction
	RecordedAt     time.Time
}

func (n Notification) Snapshot(action HistoryAction) NotificationHistory {
	return NotificationHistory{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Content:        n.Content,
		Status:         n.Status,
		IsRead:         n.IsRead,
		Action:         action,
	}
}

type payloadEnvelope struct {
	Kind PayloadKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", p.Kind(), err)
	}
	return json.Marshal(payloadEnvelope{Kind: p.Kind(), Data: data})
}

func DecodePayload(raw []byte) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding payload envelope: %w", err)
	}

	var (
		p   Payload
		err error
	)
	switch env.Kind {
	case PayloadOrderEvent:
		var v OrderEvent
		err = json.Unmarshal(env.Data, &v)
		p = v
	case PayloadPromotionRequest:
		var v PromotionRequest
		err = json.Unmarshal(env.Data, &v)
		p = v
	case PayloadPromotionOutcome:
		var v PromotionOutcome
		err = json.Unmarshal(env.Data, &v)
		p = v
	case PayloadReviewReceived:
		var v ReviewReceived
		err = json.Unmarshal(env.Data, &v)
		p = v
	case PayloadSystemMessage:
		var v SystemMessage
		err = json.Unmarshal(env.Data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown payload kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", env.Kind, err)
	}
	return p, nil
}
