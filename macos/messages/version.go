package messages

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Version is a macOS product version such as 14.4.1.
type Version struct {
	Major int
	Minor int
	Patch int
}

// participantsSince is the first release where Messages exposes participants
// instead of buddies to scripting.
var participantsSince = Version{Major: 11}

// ParseVersion parses a dotted macOS version. Missing components are zero.
func ParseVersion(raw string) (Version, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Version{}, errors.New("messages: version is required")
	}

	parts := strings.Split(raw, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("messages: invalid version %q", raw)
	}
	nums := [3]int{}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("messages: invalid version %q", raw)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// AtLeast reports whether v is the same as or newer than other.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Patch >= other.Patch
}

func (v Version) String() string {
	if v.Patch == 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// DetectVersion asks sw_vers for the running macOS version.
func DetectVersion(ctx context.Context) (Version, error) {
	out, err := exec.CommandContext(ctx, "/usr/bin/sw_vers", "-productVersion").Output()
	if err != nil {
		return Version{}, fmt.Errorf("messages: detecting macOS version failed: %w", err)
	}
	return ParseVersion(string(out))
}
