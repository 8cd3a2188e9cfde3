package aedat

import (
	"fmt"
	"strings"
)

// Kind is the closed set of event kinds carried by AEDAT files. For v3
// files the numeric value equals the packet type tag.
type Kind int16

const (
	KindSpecial  Kind = 0
	KindPolarity Kind = 1
	KindFrame    Kind = 2
	KindImu6     Kind = 3
	KindImu9     Kind = 4
	KindSample   Kind = 5
	KindEar      Kind = 6
	KindConfig   Kind = 7
	KindPoint1D  Kind = 8
	KindPoint2D  Kind = 9
	KindPoint3D  Kind = 10
)

// Imu6WordsPerSample is the number of v1/v2 address words forming one IMU6
// sample: accel X/Y/Z, temperature, gyro X/Y/Z.
const Imu6WordsPerSample = 7

var kindNames = map[Kind]string{
	KindSpecial:  "special",
	KindPolarity: "polarity",
	KindFrame:    "frame",
	KindImu6:     "imu6",
	KindImu9:     "imu9",
	KindSample:   "sample",
	KindEar:      "ear",
	KindConfig:   "config",
	KindPoint1D:  "point1D",
	KindPoint2D:  "point2D",
	KindPoint3D:  "point3D",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int16(k))
}

// ParseKind resolves a kind name such as "polarity" or "point2D".
// Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// KindSet is a selection of event kinds. A nil set selects every kind;
// an empty non-nil set selects none.
type KindSet map[Kind]struct{}

// NewKindSet returns a set holding the given kinds.
func NewKindSet(kinds ...Kind) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether k is selected.
func (s KindSet) Has(k Kind) bool {
	if s == nil {
		return true
	}
	_, ok := s[k]
	return ok
}
