package asaas

import (
	"strings"

	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/validator"
)

// ValidateCustomerPayload rejects payloads Asaas would refuse
func ValidateCustomerPayload(p CustomerPayload) error {
	var details []string
	if strings.TrimSpace(p.Name) == "" {
		details = append(details, "name is required")
	}
	if p.Email != "" && !validator.IsValidEmail(p.Email) {
		details = append(details, "invalid email format")
	}
	for _, phone := range []string{p.Phone, p.MobilePhone} {
		if phone != "" && !validator.PhoneDigitsBetween(phone, 10, 11) {
			details = append(details, "phone must have 10 or 11 digits")
			break
		}
	}
	if len(details) == 0 {
		return nil
	}
	return &apperrors.ValidationError{Field: "customer", Message: "Invalid Asaas customer payload", Details: details}
}
