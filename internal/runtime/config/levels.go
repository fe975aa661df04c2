package config

import (
	"fmt"
	"strings"
)

// StatisticsLevel controls which managed objects are registered and how much
// performance data is gathered for them. Levels are ordered: each level
// includes everything the previous one covers.
type StatisticsLevel int

const (
	StatisticsOff StatisticsLevel = iota
	StatisticsContextOnly
	StatisticsRoutesOnly
	StatisticsDefault
	StatisticsExtended
)

var statisticsLevelNames = map[StatisticsLevel]string{
	StatisticsOff:         "Off",
	StatisticsContextOnly: "ContextOnly",
	StatisticsRoutesOnly:  "RoutesOnly",
	StatisticsDefault:     "Default",
	StatisticsExtended:    "Extended",
}

func (l StatisticsLevel) String() string {
	if name, ok := statisticsLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("StatisticsLevel(%d)", int(l))
}

// Valid reports whether l is one of the declared levels.
func (l StatisticsLevel) Valid() bool {
	_, ok := statisticsLevelNames[l]
	return ok
}

// IsDefaultOrExtended reports whether per-processor counters are gathered.
func (l StatisticsLevel) IsDefaultOrExtended() bool {
	return l == StatisticsDefault || l == StatisticsExtended
}

func (l StatisticsLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *StatisticsLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseStatisticsLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseStatisticsLevel converts a case-insensitive level name.
func ParseStatisticsLevel(raw string) (StatisticsLevel, error) {
	for level, name := range statisticsLevelNames {
		if strings.EqualFold(strings.TrimSpace(raw), name) {
			return level, nil
		}
	}
	return StatisticsOff, fmt.Errorf("unknown statistics level %q", raw)
}

// MBeansLevel restricts which kinds of objects are registered regardless of
// the statistics level. The zero value registers everything.
type MBeansLevel int

const (
	MBeansDefault MBeansLevel = iota
	MBeansRoutesOnly
	MBeansContextOnly
)

var mbeansLevelNames = map[MBeansLevel]string{
	MBeansDefault:     "Default",
	MBeansRoutesOnly:  "RoutesOnly",
	MBeansContextOnly: "ContextOnly",
}

func (l MBeansLevel) String() string {
	if name, ok := mbeansLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("MBeansLevel(%d)", int(l))
}

func (l MBeansLevel) Valid() bool {
	_, ok := mbeansLevelNames[l]
	return ok
}

// IncludesRoutes reports whether routes and their endpoints, consumers,
// producers and thread pools may be registered.
func (l MBeansLevel) IncludesRoutes() bool {
	return l == MBeansDefault || l == MBeansRoutesOnly
}

// IncludesProcessors reports whether individual processing steps may be registered.
func (l MBeansLevel) IncludesProcessors() bool {
	return l == MBeansDefault
}

func (l MBeansLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *MBeansLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseMBeansLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseMBeansLevel converts a case-insensitive level name.
func ParseMBeansLevel(raw string) (MBeansLevel, error) {
	for level, name := range mbeansLevelNames {
		if strings.EqualFold(strings.TrimSpace(raw), name) {
			return level, nil
		}
	}
	return MBeansDefault, fmt.Errorf("unknown mbeans level %q", raw)
}
