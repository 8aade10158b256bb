// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// config.go reduces the Scheduler's constructor footprint using functional
// options. The options target the scheduler's policy surface: live-context
// cap, the destroy-vs-cache switch policy, acquisition pacing, and the
// post-creation stabilization wait.
//
// See: http://dave.cheney.net/2014/10/17/functional-options-for-friendly-apis

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable policy this module exposes to a host.
type Config struct {
	MaxLiveContexts     int  // gpu.Pool capacity, clamped to gpu.HardCap.
	DestroyOnSwitch     bool // default policy: destroy the previous instance on switch.
	AcquirePacing       time.Duration
	StabilizationWindow time.Duration // nominal 200ms before post-switch validation.
	DevicePixelRatioCap float64       // surface resize DPR ceiling, nominal x2.
	LogLevel            string
}

// configDefaults are the shipped policy defaults.
var configDefaults = Config{
	MaxLiveContexts:     5,
	DestroyOnSwitch:     true,
	AcquirePacing:       20 * time.Millisecond,
	StabilizationWindow: 200 * time.Millisecond,
	DevicePixelRatioCap: 2.0,
	LogLevel:            "info",
}

// Attr defines an optional Scheduler configuration override.
//
//	sched := engine.NewScheduler(store, factory, logger, metrics,
//	    engine.WithMaxLiveContexts(5),
//	    engine.WithDestroyOnSwitch(true),
//	)
type Attr func(*Config)

// WithMaxLiveContexts sets MAX_LIVE_CONTEXTS. The pool itself maps a
// non-positive value to gpu.DefaultCap and clamps larger ones to gpu.HardCap.
func WithMaxLiveContexts(n int) Attr {
	return func(c *Config) { c.MaxLiveContexts = n }
}

// WithDestroyOnSwitch sets the destroy-vs-cache policy: true destroys the
// previous engine instance on every switch, false caches it for reuse.
func WithDestroyOnSwitch(destroy bool) Attr {
	return func(c *Config) { c.DestroyOnSwitch = destroy }
}

// WithAcquirePacing sets the inter-step delay between sequential context
// acquisitions, nominally 20ms, to avoid driver stalls.
func WithAcquirePacing(d time.Duration) Attr {
	return func(c *Config) {
		if d > 0 {
			c.AcquirePacing = d
		}
	}
}

// WithStabilizationWindow sets the post-creation wait before the activator
// validates contexts, nominally 200ms. Exceeding it only logs.
func WithStabilizationWindow(d time.Duration) Attr {
	return func(c *Config) {
		if d >= 0 {
			c.StabilizationWindow = d
		}
	}
}

// WithDevicePixelRatioCap sets the device-pixel-ratio ceiling applied when
// resizing target surfaces.
func WithDevicePixelRatioCap(ratio float64) Attr {
	return func(c *Config) {
		if ratio > 0 {
			c.DevicePixelRatioCap = ratio
		}
	}
}

// WithLogLevel sets the diagnostics logger's level.
func WithLogLevel(level string) Attr {
	return func(c *Config) { c.LogLevel = level }
}

// yamlConfig is the on-disk shape for LoadConfig; fields are optional and
// fall back to configDefaults when absent.
type yamlConfig struct {
	MaxLiveContexts     *int     `yaml:"maxLiveContexts"`
	DestroyOnSwitch     *bool    `yaml:"destroyOnSwitch"`
	AcquirePacingMs     *int     `yaml:"acquirePacingMs"`
	StabilizationMs     *int     `yaml:"stabilizationMs"`
	DevicePixelRatioCap *float64 `yaml:"devicePixelRatioCap"`
	LogLevel            *string  `yaml:"logLevel"`
}

// LoadConfig reads an optional YAML host config file, returning Attrs that
// override configDefaults for any field present in the file. This lets
// operators tune scheduler policy without recompiling.
func LoadConfig(path string) ([]Attr, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, err
	}

	var attrs []Attr
	if y.MaxLiveContexts != nil {
		attrs = append(attrs, WithMaxLiveContexts(*y.MaxLiveContexts))
	}
	if y.DestroyOnSwitch != nil {
		attrs = append(attrs, WithDestroyOnSwitch(*y.DestroyOnSwitch))
	}
	if y.AcquirePacingMs != nil {
		attrs = append(attrs, WithAcquirePacing(time.Duration(*y.AcquirePacingMs)*time.Millisecond))
	}
	if y.StabilizationMs != nil {
		attrs = append(attrs, WithStabilizationWindow(time.Duration(*y.StabilizationMs)*time.Millisecond))
	}
	if y.DevicePixelRatioCap != nil {
		attrs = append(attrs, WithDevicePixelRatioCap(*y.DevicePixelRatioCap))
	}
	if y.LogLevel != nil {
		attrs = append(attrs, WithLogLevel(*y.LogLevel))
	}
	return attrs, nil
}
