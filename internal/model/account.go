package model

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Address は登録時に送る住所。
type Address struct {
	Street         string           `json:"street"`
	Number         int64            `json:"number"`
	Neighborhood   string           `json:"neighborhood"`
	City           string           `json:"city"`
	FederativeUnit string           `json:"federativeUnit"`
	PostalCode     string           `json:"postalCode"`
	Latitude       *decimal.Decimal `json:"latitude,omitempty"`
	Longitude      *decimal.Decimal `json:"longitude,omitempty"`
}

// Registration は新規ユーザー登録の入力。登録直後のユーザーは常に CLIENT。
type Registration struct {
	Name            string
	Email           string
	Password        string
	CellphoneNumber string
	Address         Address
}

// Normalize は前後の空白を除き、州コードを大文字に、郵便番号を数字のみにしたコピーを返す。
// パスワードは変更しない。
func (r Registration) Normalize() Registration {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.CellphoneNumber = strings.TrimSpace(r.CellphoneNumber)
	r.Address.Street = strings.TrimSpace(r.Address.Street)
	r.Address.Neighborhood = strings.TrimSpace(r.Address.Neighborhood)
	r.Address.City = strings.TrimSpace(r.Address.City)
	r.Address.FederativeUnit = strings.ToUpper(strings.TrimSpace(r.Address.FederativeUnit))
	r.Address.PostalCode = strings.Map(func(c rune) rune {
		if c == '-' || unicode.IsSpace(c) {
			return -1
		}
		return c
	}, r.Address.PostalCode)
	return r
}

// Validate は Normalize 済みの入力を検証する。
func (r Registration) Validate() error {
	switch {
	case r.Name == "":
		return NewValidationError("name is required")
	case r.Email == "":
		return NewValidationError("email is required")
	case !validEmail(r.Email):
		return NewValidationError("invalid email format")
	case r.Password == "":
		return NewValidationError("password is required")
	}
	return r.Address.validate()
}

func (a Address) validate() error {
	switch {
	case a.Street == "":
		return NewValidationError("street is required")
	case a.Number <= 0:
		return NewValidationError("number is required")
	case a.Neighborhood == "":
		return NewValidationError("neighborhood is required")
	case a.City == "":
		return NewValidationError("city is required")
	case len(a.FederativeUnit) != 2:
		return NewValidationError("federative unit must have 2 characters")
	case len(a.PostalCode) != 8 || !allDigits(a.PostalCode):
		return NewValidationError("postal code must have 8 digits")
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
