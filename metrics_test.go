// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

import "testing"

// TestNewMetricsIsSharedAndRegistersOnce: repeated NewMetrics calls must
// return the same instance instead of re-registering collectors against the
// default registerer, which would panic on the duplicate.
func TestNewMetricsIsSharedAndRegistersOnce(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	if a != b {
		t.Error("expected NewMetrics to return the shared instance on every call")
	}
}

// TestNilMetricsConstructionSharesCollectors: building a scheduler and a
// router with nil metrics must not panic, and the router must reuse the
// scheduler's collectors.
func TestNilMetricsConstructionSharesCollectors(t *testing.T) {
	store := NewStore()
	s := NewScheduler(store, nil, NewLogger("error"), nil)
	r := NewRouter(store, s, nil)
	if r.metrics != s.metrics {
		t.Error("expected the router to reuse the scheduler's collectors")
	}
}
