package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash of the provided password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword reports whether password matches hashed. A nil or empty hash
// never matches, so identities without a password cannot log in with one.
func CheckPassword(hashed *string, password string) bool {
	if hashed == nil || *hashed == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hashed), []byte(password)) == nil
}
