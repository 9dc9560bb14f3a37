package abtest

import (
	"strings"
	"sync"

	"github.com/ua-parser/uap-go/uaparser"
	"golang.org/x/text/language"

	"github.com/tracklab/abtest-go/abengine/visitors"
)

// UnknownLanguage is reported when no language can be read from a request.
const UnknownLanguage = "unknown"

var (
	uaParserOnce sync.Once
	uaParser     *uaparser.Parser
)

func userAgentParser() *uaparser.Parser {
	uaParserOnce.Do(func() {
		uaParser = uaparser.NewFromSaved()
	})
	return uaParser
}

// UserAgent is the part of a user agent string targeting rules look at.
type UserAgent struct {
	Device  string
	Browser string
	OS      string
}

// ParseUserAgent extracts the device class and the browser and OS families
// from a User-Agent header.
func ParseUserAgent(ua string) UserAgent {
	client := userAgentParser().Parse(ua)
	var deviceFamily, osFamily, browser string
	if client.Device != nil {
		deviceFamily = client.Device.Family
	}
	if client.Os != nil {
		osFamily = client.Os.Family
	}
	if client.UserAgent != nil {
		browser = client.UserAgent.Family
	}
	return UserAgent{
		Device:  ClassifyDevice(deviceFamily, osFamily),
		Browser: browser,
		OS:      osFamily,
	}
}

// ClassifyDevice maps a device family to one of the coarse device classes.
// Unbranded handsets are recognized by their mobile OS.
func ClassifyDevice(deviceFamily, osFamily string) string {
	switch {
	case deviceFamily == "Other" || deviceFamily == "Desktop":
		if osFamily == "Android" || osFamily == "iOS" {
			return visitors.DeviceSP
		}
		return visitors.DevicePC
	case containsAny(deviceFamily, "iPad", "Tablet"):
		return visitors.DeviceTablet
	case containsAny(deviceFamily, "iPhone", "Android", "Mobile", "Smartphone"):
		return visitors.DeviceSP
	case deviceFamily != "" && (osFamily == "Android" || osFamily == "iOS"):
		return visitors.DeviceSP
	}
	return visitors.DeviceOther
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ParseLanguage returns the primary language subtag of the preferred entry
// of an Accept-Language style value, e.g. "ja" for "ja-JP,en;q=0.8".
func ParseLanguage(acceptLanguage string) string {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return UnknownLanguage
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err == nil && len(tags) > 0 {
		if base, _ := tags[0].Base(); base.String() != "und" {
			return base.String()
		}
	}

	first, _, _ := strings.Cut(acceptLanguage, ",")
	first, _, _ = strings.Cut(first, ";")
	first, _, _ = strings.Cut(strings.TrimSpace(first), "-")
	if first == "" {
		return UnknownLanguage
	}
	return first
}

// NewVisitor builds the visitor context for req.
func NewVisitor(req *ExecuteRequest) *visitors.Visitor {
	ua := ParseUserAgent(req.UserAgent)
	return &visitors.Visitor{
		URL:        req.URL,
		Device:     ua.Device,
		Browser:    ua.Browser,
		OS:         ua.OS,
		Language:   ParseLanguage(req.Language),
		VisitCount: req.VisitCount,
		Referrer:   req.Referrer,
	}
}
