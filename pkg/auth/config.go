package auth

type Config struct {
	// JWTSecret is the identity provider's HS256 signing secret.
	JWTSecret string `env:"AUTH_JWT_SECRET,required"`
	// JWTAudience must appear in the "aud" claim; empty disables the check.
	JWTAudience string `env:"AUTH_JWT_AUDIENCE" envDefault:"authenticated"`
}
