package attributes

import "github.com/google/uuid"

// UnknownVersion is reported when the application version is not configured
const UnknownVersion = "Unknown"

// ApplicationProvider reports the application identity and a per-process
// session identifier.
type ApplicationProvider struct {
	name    string
	version string
	session string
}

// NewApplicationProvider starts a new application session
func NewApplicationProvider(name, version string) *ApplicationProvider {
	if version == "" {
		version = UnknownVersion
	}
	return &ApplicationProvider{
		name:    name,
		version: version,
		session: uuid.NewString(),
	}
}

// Session returns the session identifier, stable for the provider's lifetime
func (p *ApplicationProvider) Session() string {
	return p.session
}

// Get implements Provider
func (p *ApplicationProvider) Get() map[string]string {
	attrs := map[string]string{
		"application.version": p.version,
		"application.session": p.session,
	}
	if p.name != "" {
		attrs["application"] = p.name
	}
	return attrs
}
