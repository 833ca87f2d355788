package registry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
)

// fallbackPrefix tags service ids derived from the registration id.
const fallbackPrefix = "huian_"

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9_]`)
)

// ServiceID derives the base service id for a device, before uniqueness is
// applied. "iPhone 65050" becomes "iphone_65050". A name that is empty, or
// that slugifies to nothing, falls back to "huian_" plus the last 8
// characters of the registration id.
func ServiceID(deviceName, registrationID string) string {
	if deviceName != "" {
		slug := strings.ToLower(deviceName)
		slug = whitespaceRun.ReplaceAllString(slug, "_")
		slug = nonSlugChars.ReplaceAllString(slug, "")
		if slug != "" {
			return slug
		}
	}

	suffix := device.ShortID(registrationID)
	if suffix == "" {
		suffix = "unknown"
	}
	return fallbackPrefix + suffix
}

// UniqueServiceID appends _2, _3, ... to base until it is not in taken.
func UniqueServiceID(base string, taken map[string]struct{}) string {
	if _, clash := taken[base]; !clash {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if _, clash := taken[candidate]; !clash {
			return candidate
		}
	}
}
