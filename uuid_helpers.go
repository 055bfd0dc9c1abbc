package auth

import "github.com/google/uuid"

// SubjectUUID parses the subject claim as a user id.
func SubjectUUID(claims AuthClaims) (uuid.UUID, error) {
	if claims == nil {
		return uuid.Nil, ErrInvalidToken
	}
	return uuid.Parse(claims.Subject())
}

// HasSubjectUUID reports whether SubjectUUID will succeed.
func HasSubjectUUID(claims AuthClaims) bool {
	_, err := SubjectUUID(claims)
	return err == nil
}
