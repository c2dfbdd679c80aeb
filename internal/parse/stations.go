package parse

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Stations splits a bridge's stored station assignment into its ordered
// list. Entries are trimmed and empties dropped; order is preserved because
// poll iterates assignments in stored order.
func Stations(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDynamic reports whether a station assignment selects dynamic mode: an
// empty list, or any entry equal to the wildcard sentinel.
func IsDynamic(stations []string, wildcard string) bool {
	if len(stations) == 0 {
		return true
	}
	for _, s := range stations {
		if s == wildcard {
			return true
		}
	}
	return false
}

// HostPort splits an "ip:port" or bare "ip" string as reported by bridges in
// status batches. A missing or unparseable port yields defaultPort.
func HostPort(raw string, defaultPort int) (string, int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, fmt.Errorf("empty address")
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		// No port component; treat the whole string as a host.
		return raw, defaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return host, defaultPort, nil
	}
	return host, port, nil
}
