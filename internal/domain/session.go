package domain

// LoginFlow identifies the origin of a successful authentication event.
type LoginFlow string

const (
	LoginFlowStandard LoginFlow = "standard"
	LoginFlowRefresh  LoginFlow = "refresh"
	LoginFlowSocial   LoginFlow = "social"
)

// Redirects reports whether the flow ends in a redirect instead of a JSON body.
func (f LoginFlow) Redirects() bool {
	return f == LoginFlowSocial
}

// TokenPair is the access/refresh pair minted for one login event.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SessionRecord is the stored view of the currently valid tokens for a key.
type SessionRecord struct {
	Key          SessionKey
	AccessToken  string
	RefreshToken string
}

// LoginResponse is the JSON body written for standard and refresh logins.
type LoginResponse struct {
	Token TokenPair `json:"token"`
	ID    int64     `json:"id"`
}
