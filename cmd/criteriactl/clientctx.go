package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eligibility/internal/model"
)

// clientFlags describe the caller a command evaluates criteria for.
type clientFlags struct {
	userAgent      string
	platform       string
	appVersion     int
	groups         []string
	substudies     []string
	languages      []string
	acceptLanguage string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.userAgent, "ua", "", "client User-Agent to read the platform and app version from")
	fl.StringVar(&f.platform, "os", "", `client platform, e.g. "iPhone OS" or "Android" (overrides --ua)`)
	fl.IntVar(&f.appVersion, "app-version", -1, "client app version (overrides --ua)")
	fl.StringSliceVar(&f.groups, "group", nil, "data group (repeatable)")
	fl.StringSliceVar(&f.substudies, "substudy", nil, "substudy membership (repeatable)")
	fl.StringSliceVar(&f.languages, "lang", nil, "preferred language, most preferred first (repeatable)")
	fl.StringVar(&f.acceptLanguage, "accept-language", "", "Accept-Language header, ranked after --lang")
}

// context builds the ClientContext. Explicit --os and --app-version take
// precedence over whatever the User-Agent carries.
func (f *clientFlags) context() (model.ClientContext, error) {
	info := model.ParseUserAgent(f.userAgent)
	if f.platform != "" {
		os, ok := model.ParseOperatingSystem(f.platform)
		if !ok {
			return model.ClientContext{}, fmt.Errorf("unknown platform %q", f.platform)
		}
		info.OSName = os
	}
	if f.appVersion >= 0 {
		v := f.appVersion
		info.AppVersion = &v
	}

	var langs []string
	for _, l := range append(slices.Clone(f.languages), model.ParseAcceptLanguage(f.acceptLanguage)...) {
		if base := model.BaseLanguage(l); base != "" && !slices.Contains(langs, base) {
			langs = append(langs, base)
		}
	}
	return info.Context(f.groups, f.substudies, langs), nil
}
