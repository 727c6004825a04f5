package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// User represents a merchant account
type User struct {
	ID                  uuid.UUID      `json:"id"`
	Address             common.Address `json:"address"`
	SmartAccountAddress common.Address `json:"smartAccountAddress"`
	CompanyName         null.String    `json:"companyName"`
	CreatedAt           time.Time      `json:"createdAt"`
}

// DisplayName returns the company name, or the shortened EOA when unset
func (u *User) DisplayName() string {
	if u.CompanyName.Valid && u.CompanyName.String != "" {
		return u.CompanyName.String
	}
	hex := u.Address.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}
