// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClass(t *testing.T) {
	for input, want := range map[string]Class{
		"Normal":   Normal,
		"normal":   Normal,
		" OUTAGE ": Outage,
		"plateau":  Plateau,
		"*Outage":  Outage,
		"#Plateau": Plateau,
		"0":        Normal,
		"2":        Plateau,
	} {
		got, err := ParseClass(input)
		require.NoErrorf(t, err, "ParseClass(%q)", input)
		assert.Equalf(t, want, got, "ParseClass(%q)", input)
	}
	for _, input := range []string{"", "3", "-1", "256", "spike"} {
		_, err := ParseClass(input)
		require.Errorf(t, err, "ParseClass(%q) should fail", input)
	}
}

func TestClassNames(t *testing.T) {
	assert.Equal(t, "Outage", Outage.String())
	assert.Equal(t, "Normal", Normal.Marker())
	assert.Equal(t, "*Outage", Outage.Marker())
	assert.Equal(t, "#Plateau", Plateau.Marker())
	assert.Equal(t, "Unknown", Class(7).String())
	assert.Len(t, Classes, NumClasses)
}
