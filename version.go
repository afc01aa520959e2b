package venvboot

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a dotted release number as reported by python and pip.
// Minor and Patch are -1 when the source string omits them.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses "X", "X.Y" or "X.Y.Z". Anything after the last
// numeric run of a component is ignored, so "3.12.0rc1" yields 3.12.0.
func ParseVersion(s string) (Version, error) {
	v := Version{Minor: -1, Patch: -1}
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("error parsing version: empty string")
	}

	parts := strings.SplitN(s, ".", 3)
	dst := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, part := range parts {
		digits := leadingDigits(part)
		if digits == "" {
			if i == 0 {
				return Version{}, fmt.Errorf("error parsing version %q", s)
			}
			break
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return Version{}, fmt.Errorf("error parsing version %q: %v", s, err)
		}
		*dst[i] = n
		// a suffix such as "rc1" ends the version
		if len(digits) != len(part) {
			break
		}
	}
	return v, nil
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// ParsePythonVersion parses the output of "python --version" ("Python 3.11.4").
func ParsePythonVersion(out string) (Version, error) {
	fields := strings.Fields(out)
	if len(fields) != 2 || fields[0] != "Python" {
		return Version{}, fmt.Errorf("invalid python version string: %q", strings.TrimSpace(out))
	}
	return ParseVersion(fields[1])
}

// ParsePipVersion parses the output of "pip --version"
// ("pip 23.2.1 from /path/site-packages/pip (python 3.11)").
func ParsePipVersion(out string) (Version, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "pip") {
		return Version{}, fmt.Errorf("invalid pip version string: %q", strings.TrimSpace(out))
	}
	return ParseVersion(fields[1])
}

// Compare returns -1, 0 or 1. Components are compared in order; an
// unspecified component (-1) sorts before any specified one.
func (v Version) Compare(other Version) int {
	pairs := [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}}
	for _, p := range pairs {
		switch {
		case p[0] > p[1]:
			return 1
		case p[0] < p[1]:
			return -1
		}
	}
	return 0
}

// AtLeast reports whether v satisfies the minimum min. Components that min
// leaves unspecified are not checked, so 3.11.4 is at least "3.11".
func (v Version) AtLeast(min Version) bool {
	if min.Minor == -1 {
		v.Minor, v.Patch = -1, -1
	} else if min.Patch == -1 {
		v.Patch = -1
	}
	return v.Compare(min) >= 0
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return v == Version{}
}

// String omits unspecified components: "3.11.4", "3.11", "3".
func (v Version) String() string {
	switch {
	case v.Patch != -1:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	case v.Minor != -1:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	default:
		return strconv.Itoa(v.Major)
	}
}

// MinorString returns "major.minor", as used in lib/pythonX.Y paths.
func (v Version) MinorString() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
