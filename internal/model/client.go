package model

import (
	"regexp"
	"slices"
	"strings"

	"github.com/hashicorp/go-version"
	"golang.org/x/text/language"
)

// ClientContext is the evaluation input for matching: the caller's platform
// and app version, data groups, substudy memberships and acceptable
// languages. It is never persisted.
type ClientContext struct {
	OS          OperatingSystem
	AppVersion  *int     // nil when unknown
	DataGroups  []string // caller's current data groups
	SubstudyIDs []string // caller's current substudy memberships
	Languages   []string // most preferred first
}

// HasUsableVersion reports whether the context carries both a recognized
// platform and an app version.
func (cc ClientContext) HasUsableVersion() bool {
	return cc.OS.IsValid() && cc.AppVersion != nil
}

// ClientInfo is the platform information parsed from a User-Agent header.
type ClientInfo struct {
	AppName    string          `json:"appName,omitempty"`
	AppVersion *int            `json:"appVersion,omitempty"`
	DeviceName string          `json:"deviceName,omitempty"`
	OSName     OperatingSystem `json:"osName,omitempty"`
	OSVersion  string          `json:"osVersion,omitempty"`
	SDKName    string          `json:"sdkName,omitempty"`
	SDKVersion *int            `json:"sdkVersion,omitempty"`
}

// Context builds a ClientContext from the parsed platform information and
// the caller's account state.
func (ci ClientInfo) Context(dataGroups, substudyIDs, languages []string) ClientContext {
	return ClientContext{
		OS:          ci.OSName,
		AppVersion:  ci.AppVersion,
		DataGroups:  dataGroups,
		SubstudyIDs: substudyIDs,
		Languages:   languages,
	}
}

var (
	// AppName/AppVersion (Device; OSName/OSVersion) SDKName/SDKVersion
	uaFull = regexp.MustCompile(`^([^/]+)/([^\s/]+)\s+\(([^;]+);\s*([^)]*)\)\s+([^/\s]+)/(\S+)$`)
	// AppName/AppVersion SDKName/SDKVersion
	uaMedium = regexp.MustCompile(`^([^/]+)/([^\s/]+)\s+([^/\s]+)/(\S+)$`)
	// AppName/AppVersion
	uaShort = regexp.MustCompile(`^([^/]+)/([^\s/]+)$`)
)

// ParseUserAgent extracts app, platform and SDK information from a client
// User-Agent. Input that matches none of the supported forms yields an empty
// ClientInfo: no platform and no version, which matching treats as unknown.
func ParseUserAgent(ua string) ClientInfo {
	ua = strings.TrimSpace(ua)
	if m := uaFull.FindStringSubmatch(ua); m != nil {
		ci := ClientInfo{
			AppName:    strings.TrimSpace(m[1]),
			AppVersion: parseBuild(m[2]),
			DeviceName: strings.TrimSpace(m[3]),
			SDKName:    m[5],
			SDKVersion: parseBuild(m[6]),
		}
		osPart := strings.TrimSpace(m[4])
		name, ver, _ := strings.Cut(osPart, "/")
		if os, ok := ParseOperatingSystem(name); ok {
			ci.OSName = os
		}
		ci.OSVersion = strings.TrimSpace(ver)
		return ci
	}
	if m := uaMedium.FindStringSubmatch(ua); m != nil {
		return ClientInfo{
			AppName:    strings.TrimSpace(m[1]),
			AppVersion: parseBuild(m[2]),
			SDKName:    m[3],
			SDKVersion: parseBuild(m[4]),
		}
	}
	if m := uaShort.FindStringSubmatch(ua); m != nil {
		return ClientInfo{
			AppName:    strings.TrimSpace(m[1]),
			AppVersion: parseBuild(m[2]),
		}
	}
	return ClientInfo{}
}

// parseBuild reads a version token leniently ("26", "26.1", "v3") and
// returns its major segment, or nil when the token is not a version.
func parseBuild(token string) *int {
	v, err := version.NewVersion(token)
	if err != nil {
		return nil
	}
	segs := v.Segments()
	if len(segs) == 0 || segs[0] < 0 {
		return nil
	}
	major := segs[0]
	return &major
}

// ParseAcceptLanguage returns the base languages of an Accept-Language
// header in preference order, lower-cased and deduplicated. Malformed
// headers yield nil.
func ParseAcceptLanguage(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	var out []string
	for _, tag := range tags {
		base := baseOf(tag)
		if base == "" || slices.Contains(out, base) {
			continue
		}
		out = append(out, base)
	}
	return out
}

// BaseLanguage returns the lower-case base language of a tag such as
// "en-GB" or "fr_CA".
func BaseLanguage(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		head, _, _ := strings.Cut(strings.ReplaceAll(s, "_", "-"), "-")
		return strings.ToLower(head)
	}
	return baseOf(tag)
}

func baseOf(tag language.Tag) string {
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	s := base.String()
	if s == "und" {
		return ""
	}
	return strings.ToLower(s)
}
