// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleClassMetrics returns the CK metrics of a class with its threshold
// findings. The class may be given by ID or name.
func (h *Handlers) HandleClassMetrics(c *gin.Context) {
	a, err := h.engine.AssessClass(c.Request.Context(), c.Param("project"), c.Param("class"))
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// HandlePackageMetrics returns Martin's metrics for a package with its
// zone and balance findings.
func (h *Handlers) HandlePackageMetrics(c *gin.Context) {
	a, err := h.engine.AssessPackage(c.Request.Context(), c.Param("project"), c.Param("package"))
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// HandleIssues returns the project's architectural issues.
func (h *Handlers) HandleIssues(c *gin.Context) {
	issues, err := h.engine.FindArchitecturalIssues(c.Request.Context(), c.Param("project"))
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues, "count": len(issues)})
}

// HandleSummary returns the project's averages, issues, and quality score.
func (h *Handlers) HandleSummary(c *gin.Context) {
	summary, err := h.engine.CalculateProjectSummary(c.Request.Context(), c.Param("project"))
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
