package domain

// Application holds the client id and secret handed out by an instance when
// an app registers. Created once per instance and discarded after the token
// exchange; only the resulting access token is kept.
type Application struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Website      *string `json:"website,omitempty"`
	RedirectURI  string  `json:"redirect_uri"`
	ClientID     string  `json:"client_id"`
	ClientSecret string  `json:"client_secret"`
	VapidKey     *string `json:"vapid_key,omitempty"`
}

// Token is the opaque credential returned by the authorization code grant.
// CreatedAt is epoch seconds.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	CreatedAt   int64  `json:"created_at"`
}
