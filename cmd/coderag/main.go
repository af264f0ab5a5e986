// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command coderag stores code graphs and computes quality metrics over
// them. It runs as an HTTP service, an MCP server, or a one-shot CLI.
package main

import (
	"fmt"
	"os"

	"github.com/AleutianAI/coderag/pkg/ux"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		ux.NewPrinter(os.Stderr).Error(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}
