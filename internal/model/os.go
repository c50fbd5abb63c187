package model

import "strings"

// OperatingSystem identifies the client platform a version bound applies to.
// The value is the display name used as the key in wire-format version maps.
type OperatingSystem string

const (
	IOS     OperatingSystem = "iPhone OS"
	Android OperatingSystem = "Android"
)

// DefaultOS is the platform populated by the legacy single-value
// minAppVersion/maxAppVersion fields.
const DefaultOS = IOS

// String returns the display name of the operating system.
func (o OperatingSystem) String() string {
	return string(o)
}

// IsValid reports whether the operating system is one of the recognized platforms.
func (o OperatingSystem) IsValid() bool {
	switch o {
	case IOS, Android:
		return true
	}
	return false
}

// ParseOperatingSystem maps a display name or a common synonym to a recognized
// operating system. Matching is case-insensitive.
func ParseOperatingSystem(s string) (OperatingSystem, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iphone os", "ios", "iphone", "ipados", "ipad":
		return IOS, true
	case "android":
		return Android, true
	}
	return "", false
}
