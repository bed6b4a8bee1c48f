// Package validation содержит функции валидации входных данных.
package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mmeshcher/storefront-system/internal/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail проверяет адрес электронной почты.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPhone проверяет номер телефона: после удаления всех нецифровых
// символов должно остаться ровно 10 цифр.
func IsValidPhone(phone string) bool {
	digits := stripNonDigits(phone)
	return len(digits) == 10
}

// IsValidZipCode проверяет почтовый индекс: от 5 до 6 цифр.
func IsValidZipCode(zip string) bool {
	if len(zip) < 5 || len(zip) > 6 {
		return false
	}
	for _, ch := range zip {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// ValidateBilling проверяет платёжные реквизиты и возвращает сообщения
// об ошибках по полям. Пустая карта означает, что форма корректна.
func ValidateBilling(b model.BillingDetails) map[string]string {
	errs := make(map[string]string)

	if strings.TrimSpace(b.FirstName) == "" {
		errs["firstName"] = "First name required"
	}
	if strings.TrimSpace(b.LastName) == "" {
		errs["lastName"] = "Last name required"
	}
	if !IsValidEmail(b.Email) {
		errs["email"] = "Valid email required"
	}
	if !IsValidPhone(b.PhoneNumber) {
		errs["phoneNumber"] = "Valid 10-digit phone required"
	}
	if strings.TrimSpace(b.Address) == "" {
		errs["address"] = "Address required"
	}
	if strings.TrimSpace(b.City) == "" {
		errs["city"] = "City required"
	}
	if strings.TrimSpace(b.State) == "" {
		errs["state"] = "State required"
	}
	if !IsValidZipCode(b.ZipCode) {
		errs["zipCode"] = "Valid ZIP code required"
	}

	return errs
}

func stripNonDigits(s string) string {
	var sb strings.Builder
	for _, ch := range s {
		if unicode.IsDigit(ch) {
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}
