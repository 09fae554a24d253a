// Package common holds the version of the sigma tools.
package common

import (
	"fmt"
	"strconv"
	"strings"
)

// Must be manually updated!
// Before releasing: Verify the version number and set Prerelease to ""
// After releasing: Increase the Patch number and set Prerelease to "pre"
var version = Version{
	Major:      0,
	Minor:      1,
	Patch:      0,
	Prerelease: "pre",
}

// Set via -ldflags. Example:
//
//	go install -ldflags "-X github.com/drand/sigma/common.COMMIT=`git rev-parse HEAD`"
var (
	COMMIT    = ""
	BUILDDATE = ""
)

func GetAppVersion() Version {
	return version
}

type Version struct {
	Major      uint32
	Minor      uint32
	Patch      uint32
	Prerelease string
}

// IsCompatible tells whether a proof file written by verRcv can be read by v.
// The zero version stands for files written before versioning.
func (v Version) IsCompatible(verRcv Version) bool {
	if verRcv == (Version{}) || v == (Version{}) {
		return true
	}
	return v.Major == verRcv.Major && v.Minor == verRcv.Minor
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}

// ParseVersion reads the output of Version.String. The empty string is the
// zero version.
func ParseVersion(s string) (Version, error) {
	var v Version
	if s == "" {
		return v, nil
	}
	core, pre, _ := strings.Cut(s, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return v, fmt.Errorf("invalid version %q", s)
	}
	nums := make([]uint32, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return v, fmt.Errorf("invalid version %q: %w", s, err)
		}
		nums[i] = uint32(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Prerelease: pre}, nil
}
