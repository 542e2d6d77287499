package routers

import (
	"fmt"
	"strings"
)

// VenueType identifies the calldata family a router speaks
type VenueType int

const (
	VenueUnknown VenueType = iota
	VenueAMMV2
	VenueAMMV3
	VenueOrderbook
	VenueWrapper
	VenueAltAMM
	VenueReferralAMM

	venueTypeCount
)

var venueNames = map[VenueType]string{
	VenueAMMV2:       "v2",
	VenueAMMV3:       "v3",
	VenueOrderbook:   "kuru",
	VenueWrapper:     "wrapper",
	VenueAltAMM:      "lfj-v1",
	VenueReferralAMM: "crystal",
}

// AllVenueTypes returns every known venue type, in declaration order
func AllVenueTypes() []VenueType {
	out := make([]VenueType, 0, int(venueTypeCount)-1)
	for v := VenueAMMV2; v < venueTypeCount; v++ {
		out = append(out, v)
	}
	return out
}

func (v VenueType) String() string {
	if name, ok := venueNames[v]; ok {
		return name
	}
	return "unknown"
}

// ParseVenueType maps a manifest type string to a VenueType
func ParseVenueType(s string) (VenueType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range venueNames {
		if name == s {
			return v, nil
		}
	}
	return VenueUnknown, ErrUnknownVenueType{Type: s}
}

// UnmarshalText lets manifests spell venue types as strings
func (v *VenueType) UnmarshalText(text []byte) error {
	parsed, err := ParseVenueType(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v VenueType) MarshalText() ([]byte, error) {
	if v == VenueUnknown || v >= venueTypeCount {
		return nil, fmt.Errorf("cannot marshal venue type %d", int(v))
	}
	return []byte(v.String()), nil
}

// RouterInfo describes a recognised exchange router
type RouterInfo struct {
	VenueType VenueType `yaml:"type"`
	Name      string    `yaml:"name"`
}

type ErrUnknownVenueType struct {
	Type string
}

func (e ErrUnknownVenueType) Error() string {
	return "unknown venue type: " + e.Type
}
