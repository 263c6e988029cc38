package schedule

import (
	"encoding/json"
	"fmt"
)

// TimeUnit selects how a magnitude is interpreted
type TimeUnit int

const (
	Second TimeUnit = iota
	Minute
	Hour
	Day
)

type unitInfo struct {
	name    string
	seconds int64
	max     int // upper bound offered by selectors
}

var units = map[TimeUnit]unitInfo{
	Second: {name: "Second", seconds: 1, max: 60},
	Minute: {name: "Minute", seconds: 60, max: 60},
	Hour:   {name: "Hour", seconds: 3600, max: 24},
	Day:    {name: "Day", seconds: 86400, max: 30},
}

// Units lists every unit in selector order
func Units() []TimeUnit {
	return []TimeUnit{Second, Minute, Hour, Day}
}

func (u TimeUnit) String() string {
	if info, ok := units[u]; ok {
		return info.name
	}
	return fmt.Sprintf("TimeUnit(%d)", int(u))
}

// Seconds returns the length of one unit in seconds
func (u TimeUnit) Seconds() int64 {
	return units[u].seconds
}

// MaxMagnitude is the largest magnitude a selector offers for the unit
func (u TimeUnit) MaxMagnitude() int {
	return units[u].max
}

func (u TimeUnit) Valid() bool {
	_, ok := units[u]
	return ok
}

// ParseTimeUnit resolves a unit by its name
func ParseTimeUnit(s string) (TimeUnit, error) {
	for u, info := range units {
		if info.name == s {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown time unit %q", s)
}

func (u TimeUnit) MarshalJSON() ([]byte, error) {
	if !u.Valid() {
		return nil, fmt.Errorf("unknown time unit %d", int(u))
	}
	return json.Marshal(u.String())
}

func (u *TimeUnit) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time unit must be a string: %w", err)
	}
	parsed, err := ParseTimeUnit(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
