package library

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a "major.minor" library version. Ordering is numeric on
// (Major, Minor); "10.0" sorts after "9.0".
type Version struct {
	Major int
	Minor int
}

// InitialVersion is assigned to every newly created aggregate.
var InitialVersion = Version{Major: 0, Minor: 1}

func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	maj, err := strconv.Atoi(major)
	if err != nil || maj < 0 {
		return Version{}, fmt.Errorf("invalid major in version %q", s)
	}
	mnr, err := strconv.Atoi(minor)
	if err != nil || mnr < 0 {
		return Version{}, fmt.Errorf("invalid minor in version %q", s)
	}
	return Version{Major: maj, Minor: mnr}, nil
}

func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

func (v Version) IsZero() bool { return v.Major == 0 && v.Minor == 0 }

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	default:
		return 0
	}
}

// NextMinor is used for draft edits and new drafts off a final version.
func (v Version) NextMinor() Version { return Version{Major: v.Major, Minor: v.Minor + 1} }

// NextMajor is used on approval.
func (v Version) NextMajor() Version { return Version{Major: v.Major + 1, Minor: 0} }

func (v Version) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := ParseVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
