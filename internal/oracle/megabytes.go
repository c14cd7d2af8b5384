package oracle

import (
	"fmt"
	"strconv"
	"strings"
)

// Megabytes is a memory amount in whole megabytes.
type Megabytes int64

// Unbounded is the "no limit" memory setting. Any negative limit is treated
// as unbounded.
const Unbounded Megabytes = -1

// IsUnbounded reports whether the limit places no cap on memory.
func (m Megabytes) IsUnbounded() bool {
	return m < 0
}

// String renders the limit the way executors accept it: "145m" or "-1".
func (m Megabytes) String() string {
	if m.IsUnbounded() {
		return "-1"
	}
	return strconv.FormatInt(int64(m), 10) + "m"
}

// ParseMegabytes parses a memory limit.
// Accepted forms: "145", "145m", "145mb", "2g", "2gb", "-1" (unbounded).
// Fractional values are rejected.
func ParseMegabytes(s string) (Megabytes, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return 0, fmt.Errorf("parse memory limit: empty value")
	}
	if raw == "-1" {
		return Unbounded, nil
	}

	mult := int64(1)
	switch {
	case strings.HasSuffix(raw, "gb"):
		mult, raw = 1024, strings.TrimSuffix(raw, "gb")
	case strings.HasSuffix(raw, "g"):
		mult, raw = 1024, strings.TrimSuffix(raw, "g")
	case strings.HasSuffix(raw, "mb"):
		raw = strings.TrimSuffix(raw, "mb")
	case strings.HasSuffix(raw, "m"):
		raw = strings.TrimSuffix(raw, "m")
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse memory limit %q: must be whole megabytes (e.g. 145m, 2g, -1)", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse memory limit %q: only -1 may be negative", s)
	}
	return Megabytes(n * mult), nil
}
