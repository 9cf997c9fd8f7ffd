package validator

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gpus/backend/pkg/utils"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	ErrCPFLength      = errors.New("CPF deve ter 11 dígitos")
	ErrCPFRepeated    = errors.New("CPF inválido (dígitos repetidos)")
	ErrCPFCheckDigits = errors.New("CPF inválido (dígito verificador incorreto)")
)

// Marketing lead interests
const (
	InterestFacial   = "Harmonização Facial"
	InterestCorporal = "Estética Corporal"
	InterestBio      = "Bioestimuladores"
	InterestOthers   = "Outros"
)

// IsValidEmail applies the product e-mail pattern
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// PhoneDigitsBetween counts only digits
func PhoneDigitsBetween(phone string, min, max int) bool {
	n := len(utils.OnlyDigits(phone))
	return n >= min && n <= max
}

// ValidateCPF checks length, repeated digits and both check digits
func ValidateCPF(cpf string) error {
	d := utils.OnlyDigits(cpf)
	if len(d) != 11 {
		return ErrCPFLength
	}
	if strings.Count(d, d[:1]) == 11 {
		return ErrCPFRepeated
	}
	if cpfCheckDigit(d[:9], 10) != int(d[9]-'0') || cpfCheckDigit(d[:10], 11) != int(d[10]-'0') {
		return ErrCPFCheckDigits
	}
	return nil
}

func cpfCheckDigit(digits string, weight int) int {
	sum := 0
	for _, r := range digits {
		sum += int(r-'0') * weight
		weight--
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

// FormatTypebotPhone normalizes a captured phone to (XX) XXXXX-XXXX.
// Ten-digit numbers get the mobile 9 injected.
func FormatTypebotPhone(phone string) string {
	d := utils.OnlyDigits(phone)
	if strings.HasPrefix(d, "55") && (len(d) == 12 || len(d) == 13) {
		d = d[2:]
	}
	switch {
	case len(d) == 11:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	case len(d) == 10:
		return "(" + d[:2] + ") 9" + d[2:6] + "-" + d[6:]
	case len(d) > 2:
		return "(" + d[:2] + ") " + d[2:]
	}
	return phone
}

// MapTypebotInterest maps free text to one of the marketing interests
func MapTypebotInterest(interest string) string {
	lower := strings.ToLower(interest)
	switch {
	case lower == "":
		return InterestOthers
	case strings.Contains(lower, "facial"), strings.Contains(lower, "harmoniza"):
		return InterestFacial
	case strings.Contains(lower, "corporal"), strings.Contains(lower, "estetica"), strings.Contains(lower, "estética"):
		return InterestCorporal
	case strings.Contains(lower, "bio"):
		return InterestBio
	}
	return InterestOthers
}

// ValidInterest reports whether s is a known interest literal
func ValidInterest(s string) bool {
	switch s {
	case InterestFacial, InterestCorporal, InterestBio, InterestOthers:
		return true
	}
	return false
}
