package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
)

type User struct {
	ID        uint
	Email     string
	Name      string
	Role      Role
	IsAdmin   bool
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Service is a freelancer's published offering. The owner never changes
// after creation.
type Service struct {
	ID           uint
	OwnerID      uint
	Title        string
	Description  string
	Price        decimal.Decimal
	CurrencyCode string
	DeliveryDays int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
