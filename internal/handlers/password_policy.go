package handlers

import "unicode"

// ValidatePasswordPolicy devuelve la lista de reglas incumplidas por la
// contraseña. Una lista vacía significa que la contraseña es aceptable.
func ValidatePasswordPolicy(password string) []string {
	var violations []string
	if len(password) < 8 {
		violations = append(violations, "must be at least 8 characters long")
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if !hasSymbol {
		violations = append(violations, "must contain a symbol")
	}
	return violations
}
