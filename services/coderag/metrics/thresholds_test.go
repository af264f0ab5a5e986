// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findingMetrics(findings []Finding) []string {
	names := make([]string, 0, len(findings))
	for _, f := range findings {
		names = append(names, f.Metric)
	}
	return names
}

func TestAssessClass(t *testing.T) {
	th := DefaultThresholds()

	t.Run("three violations", func(t *testing.T) {
		a := AssessClass(CKMetrics{WMC: 16, DIT: 5, NOC: 7, CBO: 11, RFC: 30, LCOM: 0.7}, th)
		assert.Equal(t, []string{"wmc", "dit", "cbo"}, findingMetrics(a.Findings))
		assert.False(t, a.Healthy)
		assert.Contains(t, a.Findings[0].Message, "consider breaking down this class")
		assert.Contains(t, a.Findings[1].Message, "deep inheritance, prefer composition")
		assert.Contains(t, a.Findings[2].Message, "high coupling")
	})

	t.Run("at thresholds is healthy", func(t *testing.T) {
		a := AssessClass(CKMetrics{WMC: 15, DIT: 4, NOC: 7, CBO: 10, RFC: 30, LCOM: 0.7}, th)
		assert.Empty(t, a.Findings)
		assert.NotNil(t, a.Findings)
		assert.True(t, a.Healthy)
	})

	t.Run("all violations", func(t *testing.T) {
		a := AssessClass(CKMetrics{WMC: 16, DIT: 5, NOC: 8, CBO: 11, RFC: 31, LCOM: 0.71}, th)
		assert.Equal(t, []string{"wmc", "dit", "noc", "cbo", "rfc", "lcom"}, findingMetrics(a.Findings))
	})
}

func TestAssessPackage(t *testing.T) {
	tests := []struct {
		name string
		m    PackageMetrics
		want []string
	}{
		{"zone of pain", PackageMetrics{Ca: 1, Ce: 4, Instability: 0.8, Abstractness: 0.2, Distance: 0}, []string{"zone_of_pain"}},
		{"zone of uselessness", PackageMetrics{Ca: 4, Ce: 1, Instability: 0.2, Abstractness: 0.8, Distance: 0}, []string{"zone_of_uselessness"}},
		{"isolated", PackageMetrics{Instability: 0.5, Abstractness: 0.5, Distance: 0}, []string{"isolated"}},
		{"poorly balanced", PackageMetrics{Ca: 2, Instability: 0, Abstractness: 0, Distance: 1}, []string{"poorly_balanced"}},
		{"balanced", PackageMetrics{Ca: 1, Ce: 1, Instability: 0.5, Abstractness: 0.5, Distance: 0}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AssessPackage(tt.m)
			assert.Equal(t, tt.want, findingMetrics(a.Findings))
			assert.Equal(t, len(tt.want) == 0, a.Healthy)
		})
	}
}

func TestScoreProject(t *testing.T) {
	th := DefaultThresholds()

	score, grade := ScoreProject(11, 31, 5, 2, th)
	assert.Equal(t, 45, score)
	assert.Equal(t, "Poor", grade)

	score, grade = ScoreProject(10, 30, 4, 0, th)
	assert.Equal(t, 100, score)
	assert.Equal(t, "Excellent", grade)

	score, grade = ScoreProject(11, 31, 5, 30, th)
	assert.Equal(t, 0, score)
	assert.Equal(t, "Critical", grade)
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "Excellent"}, {90, "Excellent"}, {89, "Good"}, {75, "Good"},
		{74, "Fair"}, {60, "Fair"}, {59, "Poor"}, {40, "Poor"}, {39, "Critical"}, {0, "Critical"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.score), "score %d", tt.score)
	}
}

func TestPackageRatios(t *testing.T) {
	i, a, d := packageRatios(0, 0, 0, 0)
	assert.Zero(t, i)
	assert.Zero(t, a)
	assert.InDelta(t, 1.0, d, 1e-9)

	i, a, d = packageRatios(1, 3, 1, 4)
	require.InDelta(t, 0.75, i, 1e-9)
	require.InDelta(t, 0.25, a, 1e-9)
	assert.InDelta(t, 0.0, d, 1e-9)
}
