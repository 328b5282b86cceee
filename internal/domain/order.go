package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every persisted status, in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusInProgress,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsActive reports whether the order still blocks a new order for the same
// client and service.
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusPending || s == OrderStatusInProgress
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsReviewable reports whether a review may be attached in this status.
func (s OrderStatus) IsReviewable() bool {
	return s == OrderStatusDelivered || s == OrderStatusCompleted
}

// Deletable orders have not been started yet.
func (s OrderStatus) IsDeletable() bool {
	return s == OrderStatusPending
}

// Party identifies which side of an order an actor is on.
type Party string

const (
	PartyNone       Party = ""
	PartyClient     Party = "client"
	PartyFreelancer Party = "freelancer"
)

type transition struct {
	from OrderStatus
	to   OrderStatus
}

// transitions is the single source of truth for legal moves and for which
// party may trigger each one.
var transitions = map[transition][]Party{
	{OrderStatusPending, OrderStatusInProgress}:   {PartyFreelancer},
	{OrderStatusPending, OrderStatusCancelled}:    {PartyClient, PartyFreelancer},
	{OrderStatusInProgress, OrderStatusDelivered}: {PartyFreelancer},
	{OrderStatusInProgress, OrderStatusCancelled}: {PartyClient, PartyFreelancer},
	{OrderStatusDelivered, OrderStatusCompleted}:  {PartyClient},
}

func CanTransition(from, to OrderStatus) bool {
	_, ok := transitions[transition{from, to}]
	return ok
}

// CanTrigger reports whether party may perform the move from -> to. It is
// false for illegal moves.
func CanTrigger(party Party, from, to OrderStatus) bool {
	for _, p := range transitions[transition{from, to}] {
		if p == party {
			return true
		}
	}
	return false
}

type Order struct {
	ID           uint
	ClientID     uint
	FreelancerID uint
	ServiceID    *uint
	TotalPrice   decimal.Decimal
	CurrencyCode string
	Status       OrderStatus
	OrderedAt    time.Time
	UpdatedAt    time.Time
}

func (o Order) PartyOf(userID uint) Party {
	switch userID {
	case o.ClientID:
		return PartyClient
	case o.FreelancerID:
		return PartyFreelancer
	}
	return PartyNone
}

// Counterparty returns the user on the other side from userID. It returns
// zero when userID is not a party.
func (o Order) Counterparty(userID uint) uint {
	switch o.PartyOf(userID) {
	case PartyClient:
		return o.FreelancerID
	case PartyFreelancer:
		return o.ClientID
	}
	return 0
}

type OrderDelivery struct {
	ID          uint
	OrderID     uint
	Message     string
	FileURL     string
	DeliveredAt time.Time
}
