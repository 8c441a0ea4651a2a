package grbl

import (
	"fmt"
	"regexp"
	"strconv"
)

// Version is the firmware version announced by the welcome banner, eg "Grbl 1.1f ['$' for help]".
type Version struct {
	Major int
	Minor int
	// Letter is the optional build letter, 0 when absent.
	Letter rune
}

var versionRegexp = regexp.MustCompile(`^Grbl\s+(\d+)\.(\d+)([a-zA-Z])?`)

// ParseVersion extracts the Version from a welcome banner.
func ParseVersion(banner string) (Version, bool) {
	matches := versionRegexp.FindStringSubmatch(banner)
	if matches == nil {
		return Version{}, false
	}
	major, err := strconv.Atoi(matches[1])
	if err != nil {
		return Version{}, false
	}
	minor, err := strconv.Atoi(matches[2])
	if err != nil {
		return Version{}, false
	}
	v := Version{Major: major, Minor: minor}
	if matches[3] != "" {
		v.Letter = rune(matches[3][0])
	}
	return v, true
}

// IsZero tells whether no version was detected yet.
func (v Version) IsZero() bool {
	return v == Version{}
}

// Compare returns -1, 0 or 1. Build letters compare alphabetically and a missing letter sorts
// before any letter.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(int(v.Letter), int(o.Letter))
	}
}

// AtLeast tells whether v >= o.
func (v Version) AtLeast(o Version) bool {
	return v.Compare(o) >= 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (v Version) String() string {
	if v.IsZero() {
		return "<unknown>"
	}
	if v.Letter == 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d.%d%c", v.Major, v.Minor, v.Letter)
}
