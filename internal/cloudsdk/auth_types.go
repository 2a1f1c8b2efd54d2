package cloudsdk

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResetRequest struct {
	Email string `json:"email"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthTokenResponse is what login, verify and refresh return. Older
// backends send the access token as "accessToken".
type AuthTokenResponse struct {
	Token        string `json:"token"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken"`
	Email        string `json:"email,omitempty"`
}

func (r *AuthTokenResponse) Access() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

type MessageResponse struct {
	Message string `json:"message"`
}
