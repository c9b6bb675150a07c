// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Class of a graph image.
type Class int8

const (
	Normal Class = iota
	Outage
	Plateau
)

// NumClasses is the number of output classes of the classifier.
const NumClasses = 3

var (
	classNames   = [NumClasses]string{"Normal", "Outage", "Plateau"}
	classMarkers = [NumClasses]string{"Normal", "*Outage", "#Plateau"}
)

// Classes lists all classes in label order.
var Classes = []Class{Normal, Outage, Plateau}

// Valid returns whether c is one of the known classes.
func (c Class) Valid() bool {
	return c >= 0 && int(c) < NumClasses
}

func (c Class) String() string {
	if !c.Valid() {
		return "Unknown"
	}
	return classNames[c]
}

// Marker is the label used when printing predictions: anomalies are prefixed
// with a marker character so they stand out in a long listing.
func (c Class) Marker() string {
	if !c.Valid() {
		return "Unknown"
	}
	return classMarkers[c]
}

// ParseClass accepts either the class name (case-insensitive, markers included) or
// its numeric label.
func ParseClass(s string) (Class, error) {
	s = strings.TrimSpace(s)
	for ii := range NumClasses {
		if strings.EqualFold(s, classNames[ii]) || s == classMarkers[ii] {
			return Class(ii), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < NumClasses {
		return Class(n), nil
	}
	return 0, errors.Errorf("unknown class %q, valid values are %q or 0 to %d", s, classNames, NumClasses-1)
}
