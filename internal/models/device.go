// internal/models/device.go
package models

import (
	"strings"
	"time"
)

// Platform is the mobile platform a push token belongs to.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformUnknown Platform = "unknown"
)

// ParsePlatform maps a client-supplied platform string. An empty value
// defaults to android.
func ParsePlatform(raw string) Platform {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return PlatformAndroid
	case "android":
		return PlatformAndroid
	case "ios":
		return PlatformIOS
	default:
		return PlatformUnknown
	}
}

// DeviceRecord is the push token registered for a user. One per user.
type DeviceRecord struct {
	UserID       string    `json:"userId"`
	Token        string    `json:"token"`
	Platform     Platform  `json:"platform"`
	RegisteredAt time.Time `json:"registeredAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
