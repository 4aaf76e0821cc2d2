//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Screening groups targets that drive the CLI over the project directories.
type Screening mg.Namespace

var bin = "./bin/screening-engine"

// Run screens input/records.yaml against input/criteria.yaml.
func (Screening) Run() error {
	mg.Deps(Build)
	return sh.RunV(bin, "screen",
		"--records", "input/records.yaml",
		"--criteria", "input/criteria.yaml",
		"--output", "output/decisions.yaml",
		"--metrics-file", "output/screening.prom")
}

// Fit imports input/labels.yaml and refits calibrators, weights and thresholds in order.
func (Screening) Fit() error {
	mg.Deps(Build)
	steps := [][]string{
		{"audit", "label", "input/labels.yaml"},
		{"calibrate"},
		{"fit-weights"},
		{"optimize-thresholds"},
	}
	for _, args := range steps {
		if err := sh.RunV(bin, args...); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate reports performance of the latest run against the imported labels.
func (Screening) Evaluate() error {
	mg.Deps(Build)
	return sh.RunV(bin, "evaluate")
}
