//go:build navlog

// nav/log_debug.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"fmt"
	"strings"
)

var (
	navlogEnabled    bool
	navlogCategories map[string]bool
)

// InitNavLog initializes the navigation logging system; categories is a
// comma-separated list, or "all".
func InitNavLog(enabled bool, categories string) {
	navlogEnabled = enabled
	navlogCategories = make(map[string]bool)

	if !enabled {
		return
	}

	if categories == "" || categories == "all" {
		for _, c := range navLogCategories {
			navlogCategories[c] = true
		}
	} else {
		for cat := range strings.SplitSeq(categories, ",") {
			navlogCategories[strings.TrimSpace(cat)] = true
		}
	}
}

// NavLog logs a message with the tick time and category.
func NavLog(now Millis, category string, format string, args ...any) {
	if !navlogEnabled || !navlogCategories[category] {
		return
	}

	// Format: [seconds.millis] [category] message
	fmt.Printf("[%d.%03d] [%s] %s\n", now/1000, now%1000, category, fmt.Sprintf(format, args...))
}

// NavLogEnabled returns whether navigation logging is enabled for a given category
func NavLogEnabled(category string) bool {
	return navlogEnabled && navlogCategories[category]
}
