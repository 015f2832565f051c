// Package audience owns the routing configuration document: the
// ordered severity levels and the per-person delivery profiles.
package audience

import (
	"fmt"

	"courier/internal/severity"
)

// Preference selects which device class (if any) receives a delivery
// for a given severity.
type Preference string

const (
	PrefAllDevices  Preference = "all_devices"
	PrefMobileOnly  Preference = "mobile_only"
	PrefDesktopOnly Preference = "desktop_only"
	PrefLogOnly     Preference = "log_only"
	PrefNone        Preference = "none"
)

// Device classes under a person's profile.
const (
	ClassAll     = "all"
	ClassMobile  = "mobile"
	ClassDesktop = "desktop"
)

var validPreferences = map[Preference]bool{
	PrefAllDevices:  true,
	PrefMobileOnly:  true,
	PrefDesktopOnly: true,
	PrefLogOnly:     true,
	PrefNone:        true,
}

var validClasses = map[string]bool{
	ClassAll:     true,
	ClassMobile:  true,
	ClassDesktop: true,
}

// Valid reports whether p is a recognized preference value.
func (p Preference) Valid() bool { return validPreferences[p] }

// Delivers reports whether p results in device deliveries at all.
// log_only and none both suppress devices; log_only still records the
// event in the audit trail (as does every preference).
func (p Preference) Delivers() bool {
	return p == PrefAllDevices || p == PrefMobileOnly || p == PrefDesktopOnly
}

// DeviceClass returns the device-class list consulted for p, or ""
// when p delivers to no devices.
func (p Preference) DeviceClass() string {
	switch p {
	case PrefAllDevices:
		return ClassAll
	case PrefMobileOnly:
		return ClassMobile
	case PrefDesktopOnly:
		return ClassDesktop
	default:
		return ""
	}
}

// PersonProfile holds one person's per-severity preferences and their
// curated device lists. Device lists are independent: mobile/desktop
// are not required to be subsets of all.
type PersonProfile struct {
	Preferences map[string]Preference `yaml:"preferences" json:"preferences"`
	Devices     map[string][]string   `yaml:"devices" json:"devices"`
}

// PreferenceFor resolves the preference for a severity; missing
// entries default to none.
func (p PersonProfile) PreferenceFor(sev string) Preference {
	if pref, ok := p.Preferences[sev]; ok {
		return pref
	}
	return PrefNone
}

// DevicesFor returns the device list selected by pref, in configured
// order. Nil when pref delivers to no devices.
func (p PersonProfile) DevicesFor(pref Preference) []string {
	class := pref.DeviceClass()
	if class == "" {
		return nil
	}
	return p.Devices[class]
}

// Configuration is the full routing document. Person identifiers are
// case-sensitive as supplied.
type Configuration struct {
	SeverityLevels []string                 `yaml:"severity_levels" json:"severity_levels"`
	Audiences      map[string]PersonProfile `yaml:"audiences" json:"audiences"`
}

// Default returns the minimal configuration substituted when the
// stored document cannot be read.
func Default() *Configuration {
	return &Configuration{
		SeverityLevels: append([]string(nil), severity.DefaultLevels...),
		Audiences:      map[string]PersonProfile{},
	}
}

// Validate enforces the document structure: both top-level keys must
// be present, and preference / device-class values must be recognized.
func (c *Configuration) Validate() error {
	if len(c.SeverityLevels) == 0 {
		return fmt.Errorf("%w: severity_levels missing or empty", ErrInvalidStructure)
	}
	if c.Audiences == nil {
		return fmt.Errorf("%w: audiences missing", ErrInvalidStructure)
	}
	for person, profile := range c.Audiences {
		for sev, pref := range profile.Preferences {
			if !pref.Valid() {
				return fmt.Errorf("%w: person %q severity %q has unknown preference %q",
					ErrInvalidStructure, person, sev, pref)
			}
		}
		for class := range profile.Devices {
			if !validClasses[class] {
				return fmt.Errorf("%w: person %q has unknown device class %q",
					ErrInvalidStructure, person, class)
			}
		}
	}
	return nil
}
