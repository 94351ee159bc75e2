package browser

// Cookie is one session credential record. The JSON layout follows the
// browser-context export format so files written by other tools load as-is.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // Unix seconds; -1 for session cookies.
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// IsSession reports whether the cookie lives only as long as the browser.
func (c Cookie) IsSession() bool { return c.Expires <= 0 }
