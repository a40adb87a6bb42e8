package models

// TokenPair is the result of a successful login or refresh. It is built
// fresh per issuance and never stored. ExpiresIn is the access-token
// lifetime in seconds, derived from the issuer configuration.
type TokenPair struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}
