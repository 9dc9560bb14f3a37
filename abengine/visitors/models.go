package visitors

// Attribute names a visitor property that condition groups can constrain.
type Attribute string

const (
	Device   Attribute = "device"
	Browser  Attribute = "browser"
	OS       Attribute = "os"
	Language Attribute = "language"
)

// Attributes lists the constrained attributes in evaluation order.
var Attributes = []Attribute{Device, Browser, OS, Language}

// Coarse device classes derived from the user agent.
const (
	DevicePC     = "PC"
	DeviceTablet = "Tablet"
	DeviceSP     = "SP"
	DeviceOther  = "other"
)

// Visitor is the per-request context experiments are evaluated against.
type Visitor struct {
	// URL is the page URL exactly as the browser reported it.
	URL      string `json:"url"`
	Device   string `json:"device"`
	Browser  string `json:"browser"`
	OS       string `json:"os"`
	Language string `json:"language"`
	// VisitCount is the client-side visit counter, 1 on the first visit.
	VisitCount int    `json:"visitCount"`
	Referrer   string `json:"referrer"`
}

// Value returns the visitor's value for attribute, or "" for an unknown attribute.
func (v *Visitor) Value(attribute Attribute) string {
	switch attribute {
	case Device:
		return v.Device
	case Browser:
		return v.Browser
	case OS:
		return v.OS
	case Language:
		return v.Language
	}
	return ""
}
