package util

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ID is any unsigned identifier type written in range lists, such as
// port and VLAN ids.
type ID interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// ParseIDList expands a list such as "1-3,5,7-9" into sorted, distinct ids.
// Every id must lie in [1, limit]. Overlapping ranges are merged.
func ParseIDList[T ID](list string, limit T) ([]T, error) {
	var out []T
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := parseID(lo, limit)
		if err != nil {
			return nil, err
		}
		last := first
		if isRange {
			if last, err = parseID(hi, limit); err != nil {
				return nil, err
			}
			if first > last {
				return nil, fmt.Errorf("range %s runs backwards", part)
			}
		}
		for id := first; ; id++ {
			out = append(out, id)
			if id == last {
				break
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func parseID[T ID](s string, limit T) (T, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	if n == 0 || n > uint64(limit) {
		return 0, fmt.Errorf("id %d out of range 1-%d", n, uint64(limit))
	}
	return T(n), nil
}

// FormatIDList is the inverse of ParseIDList: [1 2 3 5 7 8 9] -> "1-3,5,7-9".
func FormatIDList[T ID](ids []T) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := slices.Compact(slices.Sorted(slices.Values(ids)))

	var b strings.Builder
	start, end := sorted[0], sorted[0]
	flush := func() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(start), 10))
		if end != start {
			b.WriteByte('-')
			b.WriteString(strconv.FormatUint(uint64(end), 10))
		}
	}
	for _, id := range sorted[1:] {
		if id == end+1 {
			end = id
			continue
		}
		flush()
		start, end = id, id
	}
	flush()
	return b.String()
}

// MaxPortID bounds port ids in range lists.
const MaxPortID = math.MaxUint16

// ValidateVLANID checks that id is a usable 802.1Q VLAN id.
func ValidateVLANID(id int) error {
	if id < 1 || id > 4094 {
		return fmt.Errorf("invalid VLAN ID %d (must be 1-4094)", id)
	}
	return nil
}
