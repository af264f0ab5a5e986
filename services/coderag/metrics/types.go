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

// CKMetrics holds the Chidamber and Kemerer metrics of one class.
type CKMetrics struct {
	ClassID   string `json:"class_id"`
	ClassName string `json:"class_name"`

	// WMC counts methods contained by the class.
	WMC int `json:"wmc"`

	// DIT is the length of the ancestor chain.
	DIT int `json:"dit"`

	// NOC counts classes that extend this class directly.
	NOC int `json:"noc"`

	// CBO counts distinct other classes coupled through calls, references,
	// implements, or extends edges in either direction.
	CBO int `json:"cbo"`

	// RFC counts own methods plus the distinct methods they call.
	RFC int `json:"rfc"`

	// LCOM is the lack of cohesion in [0,1], per the configured strategy.
	LCOM float64 `json:"lcom"`
}

// Finding is one threshold violation or package-level observation.
type Finding struct {
	// Metric names the metric or rule, e.g. "wmc" or "zone_of_pain".
	Metric string `json:"metric"`

	// Message is the human-readable explanation.
	Message string `json:"message"`
}

// ClassAssessment is a CK result with its threshold violations.
type ClassAssessment struct {
	Metrics  CKMetrics `json:"metrics"`
	Findings []Finding `json:"findings"`
	Healthy  bool      `json:"healthy"`
}

// PackageMetrics holds Martin's package metrics.
type PackageMetrics struct {
	Package         string `json:"package"`
	Classes         int    `json:"classes"`
	AbstractClasses int    `json:"abstract_classes"`

	// Ca counts external classes depending on this package's classes.
	Ca int `json:"ca"`

	// Ce counts external classes this package's classes depend on.
	Ce int `json:"ce"`

	Instability  float64 `json:"instability"`
	Abstractness float64 `json:"abstractness"`
	Distance     float64 `json:"distance"`
}

// PackageAssessment is a package result with its findings.
type PackageAssessment struct {
	Metrics  PackageMetrics `json:"metrics"`
	Findings []Finding      `json:"findings"`
	Healthy  bool           `json:"healthy"`
}

// Severity ranks architectural issues.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IssueKind classifies architectural issues.
type IssueKind string

const (
	IssueCircularDependency IssueKind = "circular_dependency"
	IssueGodClass           IssueKind = "god_class"
	IssueExcessiveCoupling  IssueKind = "excessive_coupling"
)

// ArchitecturalIssue is one project-level design problem.
type ArchitecturalIssue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`

	// Classes lists the classes involved, sorted by ID.
	Classes []string `json:"classes"`
}

// ProjectSummary aggregates class metrics and issues into a quality score.
type ProjectSummary struct {
	ProjectID  string  `json:"project_id"`
	ClassCount int     `json:"class_count"`
	AvgWMC     float64 `json:"avg_wmc"`
	AvgDIT     float64 `json:"avg_dit"`
	AvgNOC     float64 `json:"avg_noc"`
	AvgCBO     float64 `json:"avg_cbo"`
	AvgRFC     float64 `json:"avg_rfc"`
	AvgLCOM    float64 `json:"avg_lcom"`

	IssueCount int                  `json:"issue_count"`
	Issues     []ArchitecturalIssue `json:"issues"`

	// Score is the quality score in [0,100]; Grade is its band.
	Score int    `json:"score"`
	Grade string `json:"grade"`
}
