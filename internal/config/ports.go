package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePortRange parses "8000-8020" or a single port "22".
func ParsePortRange(s string) (start, end int, err error) {
	lo, hi, isRange := strings.Cut(strings.TrimSpace(s), "-")
	if start, err = parsePort(lo); err != nil {
		return 0, 0, fmt.Errorf("invalid port range %q: %w", s, err)
	}
	if !isRange {
		return start, start, nil
	}
	if end, err = parsePort(hi); err != nil {
		return 0, 0, fmt.Errorf("invalid port range %q: %w", s, err)
	}
	if end < start {
		return 0, 0, fmt.Errorf("invalid port range %q: end before start", s)
	}
	return start, end, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", p)
	}
	return p, nil
}
