package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	AccountTypePrivate  = "private"
	AccountTypeBusiness = "business"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	Postcode     string    `json:"postcode"`
	Area         string    `json:"area"`
	AccountType  string    `json:"account_type"`
	BusinessID   *string   `json:"business_id,omitempty"`
	CompanyName  *string   `json:"company_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
