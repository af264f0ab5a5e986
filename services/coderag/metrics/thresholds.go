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
	"fmt"
	"math"
)

// Thresholds are the fixed limits applied to CK metrics. A metric strictly
// above its limit is a violation.
type Thresholds struct {
	WMC  int     `yaml:"wmc"`
	DIT  int     `yaml:"dit"`
	NOC  int     `yaml:"noc"`
	CBO  int     `yaml:"cbo"`
	RFC  int     `yaml:"rfc"`
	LCOM float64 `yaml:"lcom"`
}

// DefaultThresholds returns WMC 15, DIT 4, NOC 7, CBO 10, RFC 30, LCOM 0.7.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WMC:  15,
		DIT:  4,
		NOC:  7,
		CBO:  10,
		RFC:  30,
		LCOM: 0.7,
	}
}

// Package metric limits.
const (
	zoneHighInstability  = 0.7
	zoneLowAbstractness  = 0.3
	zoneLowInstability   = 0.3
	zoneHighAbstractness = 0.7
	maxDistance          = 0.7
)

// Project score deductions.
const (
	scoreStart       = 100
	penaltyAvgCBO    = 20
	penaltyAvgRFC    = 15
	penaltyAvgDIT    = 10
	penaltyPerIssue  = 5
	gradeExcellent   = 90
	gradeGood        = 75
	gradeFair        = 60
	gradePoor        = 40
	godClassFactor   = 2
	highCouplingMult = 2
)

// AssessClass applies th to m.
//
// Description:
//
//	Returns one finding per violated threshold, in the order WMC, DIT, NOC,
//	CBO, RFC, LCOM. The class is healthy when there are none.
func AssessClass(m CKMetrics, th Thresholds) ClassAssessment {
	findings := []Finding{}
	if m.WMC > th.WMC {
		findings = append(findings, Finding{"wmc",
			fmt.Sprintf("WMC %d exceeds %d: consider breaking down this class", m.WMC, th.WMC)})
	}
	if m.DIT > th.DIT {
		findings = append(findings, Finding{"dit",
			fmt.Sprintf("DIT %d exceeds %d: deep inheritance, prefer composition", m.DIT, th.DIT)})
	}
	if m.NOC > th.NOC {
		findings = append(findings, Finding{"noc",
			fmt.Sprintf("NOC %d exceeds %d: consider interface segregation", m.NOC, th.NOC)})
	}
	if m.CBO > th.CBO {
		findings = append(findings, Finding{"cbo",
			fmt.Sprintf("CBO %d exceeds %d: high coupling", m.CBO, th.CBO)})
	}
	if m.RFC > th.RFC {
		findings = append(findings, Finding{"rfc",
			fmt.Sprintf("RFC %d exceeds %d: class doing too much", m.RFC, th.RFC)})
	}
	if m.LCOM > th.LCOM {
		findings = append(findings, Finding{"lcom",
			fmt.Sprintf("LCOM %.2f exceeds %.2f: low cohesion", m.LCOM, th.LCOM)})
	}
	return ClassAssessment{Metrics: m, Findings: findings, Healthy: len(findings) == 0}
}

// AssessPackage reports zone, balance, and isolation findings for m.
func AssessPackage(m PackageMetrics) PackageAssessment {
	findings := []Finding{}
	if m.Instability > zoneHighInstability && m.Abstractness < zoneLowAbstractness {
		findings = append(findings, Finding{"zone_of_pain",
			"Zone of Pain: stable and concrete, hard to extend"})
	}
	if m.Instability < zoneLowInstability && m.Abstractness > zoneHighAbstractness {
		findings = append(findings, Finding{"zone_of_uselessness",
			"Zone of Uselessness: abstract and stable but unused"})
	}
	if m.Distance > maxDistance {
		findings = append(findings, Finding{"poorly_balanced",
			fmt.Sprintf("Distance %.2f from the main sequence: poorly balanced", m.Distance)})
	}
	if m.Ca == 0 && m.Ce == 0 {
		findings = append(findings, Finding{"isolated",
			"Isolated package: no dependencies in or out"})
	}
	return PackageAssessment{Metrics: m, Findings: findings, Healthy: len(findings) == 0}
}

// ScoreProject computes the quality score and its grade.
//
// Description:
//
//	Starts at 100 and subtracts 20 when avgCBO exceeds the CBO threshold,
//	15 when avgRFC exceeds the RFC threshold, 10 when avgDIT exceeds the
//	DIT threshold, and 5 per issue. The result is clamped to [0,100].
func ScoreProject(avgCBO, avgRFC, avgDIT float64, issueCount int, th Thresholds) (int, string) {
	score := scoreStart
	if avgCBO > float64(th.CBO) {
		score -= penaltyAvgCBO
	}
	if avgRFC > float64(th.RFC) {
		score -= penaltyAvgRFC
	}
	if avgDIT > float64(th.DIT) {
		score -= penaltyAvgDIT
	}
	score -= penaltyPerIssue * issueCount
	score = max(0, min(scoreStart, score))
	return score, Grade(score)
}

// Grade maps a score to its band.
func Grade(score int) string {
	switch {
	case score >= gradeExcellent:
		return "Excellent"
	case score >= gradeGood:
		return "Good"
	case score >= gradeFair:
		return "Fair"
	case score >= gradePoor:
		return "Poor"
	default:
		return "Critical"
	}
}

// packageRatios derives instability, abstractness, and distance.
func packageRatios(ca, ce, abstract, classes int) (instability, abstractness, distance float64) {
	if ca+ce > 0 {
		instability = float64(ce) / float64(ca+ce)
	}
	if classes > 0 {
		abstractness = float64(abstract) / float64(classes)
	}
	distance = math.Abs(abstractness + instability - 1)
	return instability, abstractness, distance
}
