package visit

import (
	"github.com/mileusna/useragent"

	"github.com/pulselabs/linkpulse/internal/models"
)

// ClassifyUserAgent derives the analytics facts from a raw User-Agent
// header. Unknown fields default to "Unknown"; the device class defaults
// to Desktop when the agent is neither mobile nor tablet.
func ClassifyUserAgent(rawUserAgent string) (osName, deviceClass, browser string) {
	ua := useragent.Parse(rawUserAgent)

	osName = ua.OS
	if osName == "" {
		osName = models.UnknownValue
	}

	browser = ua.Name
	if browser == "" {
		browser = models.UnknownValue
	}

	switch {
	case ua.Mobile:
		deviceClass = models.DeviceMobile
	case ua.Tablet:
		deviceClass = models.DeviceTablet
	default:
		deviceClass = models.DeviceDesktop
	}

	return osName, deviceClass, browser
}
