package config

// HTTPConfig configures the admin API.
type HTTPConfig struct {
	// Addr is the listen address. Empty disables the API.
	Addr string `json:"addr"`
	// Token, when set, must be sent as a bearer token on /api routes.
	Token string `json:"token"`
	// JWTSecret, when set, also accepts HS256 JWTs signed with it.
	JWTSecret string `json:"jwt_secret"`
	// JWTIssuer restricts accepted JWTs to this issuer.
	JWTIssuer string `json:"jwt_issuer"`
}

// Enabled reports whether the API should be served.
func (c HTTPConfig) Enabled() bool { return c.Addr != "" }
