package billing

import "strings"

// Config holds the browser URLs handed to the hosted checkout and portal pages.
type Config struct {
	AppURL           string `env:"APP_URL" envDefault:"http://localhost:3000"`
	SuccessPath      string `env:"CHECKOUT_SUCCESS_PATH" envDefault:"/dashboard?checkout=success"`
	CancelPath       string `env:"CHECKOUT_CANCEL_PATH" envDefault:"/pricing?checkout=canceled"`
	PortalReturnPath string `env:"PORTAL_RETURN_PATH" envDefault:"/account"`
}

// URL resolves path against AppURL.
func (c Config) URL(path string) string {
	return strings.TrimRight(c.AppURL, "/") + path
}
