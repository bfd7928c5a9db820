// Package txid issues and parses application-namespaced transaction IDs of
// the form <clientPrefix><32 hex chars>|<YYYYMMDDHHMMSS>.
package txid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TimestampLayout is the provider-wide wire format for timestamps.
	TimestampLayout = "20060102150405"

	separator = "|"
)

// Timestamps are exchanged with the provider in KST regardless of host
// timezone, so both sides of a lexicographic comparison agree.
var location = time.FixedZone("KST", 9*60*60)

// New returns a transaction ID combining the deployment prefix, a 128-bit
// random suffix, and the issuance time.
func New(clientPrefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return clientPrefix + suffix + separator + FormatTime(now)
}

// IssuedAt extracts the issuance timestamp embedded in a transaction ID.
func IssuedAt(id string) (time.Time, error) {
	idx := strings.LastIndex(id, separator)
	if idx < 0 {
		return time.Time{}, fmt.Errorf("transaction id %q has no timestamp component", id)
	}
	return ParseTime(id[idx+1:])
}

func FormatTime(t time.Time) string {
	return t.In(location).Format(TimestampLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, location)
}
