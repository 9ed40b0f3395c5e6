package model

import "testing"

func validRegistration() Registration {
	return Registration{
		Name:     "Ana Souza",
		Email:    "ana@example.com",
		Password: "secret",
		Address: Address{
			Street:         "Rua das Flores",
			Number:         120,
			Neighborhood:   "Centro",
			City:           "Recife",
			FederativeUnit: "PE",
			PostalCode:     "50010000",
		},
	}
}

func TestRegistration_Normalize(t *testing.T) {
	r := validRegistration()
	r.Name = "  Ana Souza "
	r.Email = " ana@example.com\n"
	r.Password = " secret "
	r.Address.FederativeUnit = " pe"
	r.Address.PostalCode = "50010-000"

	n := r.Normalize()
	if n.Name != "Ana Souza" || n.Email != "ana@example.com" {
		t.Errorf("name/email = %q/%q", n.Name, n.Email)
	}
	if n.Password != " secret " {
		t.Errorf("password should be kept as entered, got %q", n.Password)
	}
	if n.Address.FederativeUnit != "PE" || n.Address.PostalCode != "50010000" {
		t.Errorf("address = %+v", n.Address)
	}
	if err := n.Validate(); err != nil {
		t.Errorf("normalized registration should be valid: %v", err)
	}
	if r.Address.PostalCode != "50010-000" {
		t.Error("Normalize should not modify the receiver")
	}
}

func TestRegistration_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Registration)
		want   string
	}{
		{"名前なし", func(r *Registration) { r.Name = "" }, "name is required"},
		{"メールなし", func(r *Registration) { r.Email = "" }, "email is required"},
		{"メール形式", func(r *Registration) { r.Email = "ana.example.com" }, "invalid email format"},
		{"表示名付きメール", func(r *Registration) { r.Email = "Ana <ana@example.com>" }, "invalid email format"},
		{"パスワードなし", func(r *Registration) { r.Password = "" }, "password is required"},
		{"通りなし", func(r *Registration) { r.Address.Street = "" }, "street is required"},
		{"番地なし", func(r *Registration) { r.Address.Number = 0 }, "number is required"},
		{"地区なし", func(r *Registration) { r.Address.Neighborhood = "" }, "neighborhood is required"},
		{"市なし", func(r *Registration) { r.Address.City = "" }, "city is required"},
		{"州コード3文字", func(r *Registration) { r.Address.FederativeUnit = "PER" }, "federative unit must have 2 characters"},
		{"郵便番号7桁", func(r *Registration) { r.Address.PostalCode = "5001000" }, "postal code must have 8 digits"},
		{"郵便番号に文字", func(r *Registration) { r.Address.PostalCode = "5001000A" }, "postal code must have 8 digits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRegistration()
			tt.modify(&r)
			err := r.Validate()
			apiErr, ok := err.(*APIError)
			if !ok {
				t.Fatalf("Validate() = %v, want *APIError", err)
			}
			if apiErr.Code != ErrCodeValidation || apiErr.Message != tt.want {
				t.Errorf("Validate() = %s %q, want %q", apiErr.Code, apiErr.Message, tt.want)
			}
		})
	}

	if err := validRegistration().Validate(); err != nil {
		t.Errorf("valid registration: %v", err)
	}
}
