// Package featureflags evaluates FEATURE_FLAGS rollout switches.
package featureflags

import (
	"hash/fnv"
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Known flags.
const (
	// GuestListings allows anonymous listing submission.
	GuestListings = "guest_listings"
	// ImageWebP stores a WebP sibling next to every uploaded JPEG.
	ImageWebP = "image_webp"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "guest_listings=on,image_webp=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = normalize(key)
		value = normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled reports whether a flag is on for the subject. Values are on/true/1,
// off/false/0, or N% for a deterministic rollout keyed by subject. A nil
// subject (guest) only sees 100% rollouts.
func (m *Manager) Enabled(name string, subject *uuid.UUID) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if subject == nil {
		return false
	}
	return rolloutBucket(name, *subject) < pct
}

// EnabledGlobally is Enabled for checks that have no subject.
func (m *Manager) EnabledGlobally(name string) bool {
	return m.Enabled(name, nil)
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m.flags)
}

// Snapshot returns evaluated flag status for one subject.
func (m *Manager) Snapshot(subject *uuid.UUID) map[string]bool {
	out := make(map[string]bool)
	if m == nil {
		return out
	}
	for name := range m.flags {
		out[name] = m.Enabled(name, subject)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, subject uuid.UUID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + subject.String()))
	return int(h.Sum32() % 100)
}
