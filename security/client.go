package security

import (
	"net/http"
	"regexp"
)

// DeviceClass is a coarse classification of the requesting device.
type DeviceClass string

const (
	DeviceAndroid DeviceClass = "android"
	DeviceIOS     DeviceClass = "ios"
	DeviceOther   DeviceClass = "other"
)

var (
	androidPattern = regexp.MustCompile(`(?i)android`)
	iosPattern     = regexp.MustCompile(`(?i)iphone|ipad|ipod`)
)

// IsMobile reports whether the class gets native-scheme links.
func (d DeviceClass) IsMobile() bool {
	return d == DeviceAndroid || d == DeviceIOS
}

// ClassifyDevice derives the device class from an identification string.
func ClassifyDevice(identification string) DeviceClass {
	switch {
	case androidPattern.MatchString(identification):
		return DeviceAndroid
	case iosPattern.MatchString(identification):
		return DeviceIOS
	default:
		return DeviceOther
	}
}

// ClientContext is what the gate knows about the caller of one request.
// It is recomputed for every request and never stored.
type ClientContext struct {
	NetworkAddress       string
	IdentificationString string
	DeviceClass          DeviceClass
}

// NewClientContext builds the context of r. See GetClientIP for how the
// network address is chosen.
func NewClientContext(r *http.Request, trustProxy bool, trustedProxyCount int) ClientContext {
	ua := r.UserAgent()
	return ClientContext{
		NetworkAddress:       GetClientIP(r, trustProxy, trustedProxyCount),
		IdentificationString: ua,
		DeviceClass:          ClassifyDevice(ua),
	}
}
