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
	"strings"
)

// Cohesion is the structural input to an LCOM computation.
type Cohesion struct {
	// Methods are the class's method IDs.
	Methods []string

	// Fields are the class's field IDs.
	Fields []string

	// Accesses maps a method ID to the set of class fields it uses.
	Accesses map[string]map[string]bool
}

// LCOMStrategy computes lack of cohesion from a class's methods and fields.
// Implementations return a value in [0,1] and 0 for classes with fewer than
// two methods or no fields.
type LCOMStrategy interface {
	Name() string
	Compute(c Cohesion) float64
}

// LCOM strategy names.
const (
	LCOMPairwise         = "pairwise"
	LCOMHendersonSellers = "henderson-sellers"
)

// ParseLCOMStrategy returns the strategy registered under name. The empty
// name selects the pairwise strategy.
func ParseLCOMStrategy(name string) (LCOMStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LCOMPairwise:
		return PairwiseLCOM{}, nil
	case LCOMHendersonSellers:
		return HendersonSellersLCOM{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLCOMStrategy, name)
	}
}

// PairwiseLCOM is the normalised CK definition: the fraction of method pairs
// that share no field.
type PairwiseLCOM struct{}

// Name implements LCOMStrategy.
func (PairwiseLCOM) Name() string { return LCOMPairwise }

// Compute implements LCOMStrategy.
func (PairwiseLCOM) Compute(c Cohesion) float64 {
	n := len(c.Methods)
	if n < 2 || len(c.Fields) == 0 {
		return 0
	}

	disjoint, total := 0, 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			total++
			if !sharesField(c.Accesses[c.Methods[i]], c.Accesses[c.Methods[j]]) {
				disjoint++
			}
		}
	}
	return float64(disjoint) / float64(total)
}

// HendersonSellersLCOM is LCOM* = (mean(mu(f)) - m) / (1 - m), where mu(f)
// counts the methods using field f. Clamped to [0,1].
type HendersonSellersLCOM struct{}

// Name implements LCOMStrategy.
func (HendersonSellersLCOM) Name() string { return LCOMHendersonSellers }

// Compute implements LCOMStrategy.
func (HendersonSellersLCOM) Compute(c Cohesion) float64 {
	m := len(c.Methods)
	if m < 2 || len(c.Fields) == 0 {
		return 0
	}

	sum := 0
	for _, f := range c.Fields {
		for _, method := range c.Methods {
			if c.Accesses[method][f] {
				sum++
			}
		}
	}
	mean := float64(sum) / float64(len(c.Fields))
	value := (mean - float64(m)) / (1 - float64(m))
	return max(0, min(1, value))
}

func sharesField(a, b map[string]bool) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for f := range a {
		if b[f] {
			return true
		}
	}
	return false
}
