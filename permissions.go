// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// permissions.go tracks the host's audio and motion permission grants.
// Both require a user-gesture-initiated prompt on platforms that gate them;
// the decision is remembered for the process lifetime so the host never
// re-prompts. On denial the dependent input channel stays dark and the rest
// of the system is fully functional.

import "sync"

// GrantState is a remembered permission decision.
type GrantState int

const (
	GrantUnasked GrantState = iota
	GrantGranted
	GrantDenied
)

func (g GrantState) String() string {
	switch g {
	case GrantGranted:
		return "granted"
	case GrantDenied:
		return "denied"
	default:
		return "unasked"
	}
}

// Permissions remembers the audio and motion grant decisions and reports a
// denial to the host's diagnostic sink once per channel.
type Permissions struct {
	mu     sync.Mutex
	audio  GrantState
	motion GrantState
	sink   DiagnosticSink
}

// NewPermissions creates a Permissions with both channels unasked. sink may
// be nil; denials are then only remembered, not reported.
func NewPermissions(sink DiagnosticSink) *Permissions {
	return &Permissions{sink: sink}
}

// RequestAudio runs prompt only if no audio decision has been remembered
// yet, records the outcome, and returns whether audio is now granted. The
// prompt must be invoked from a user gesture; that is the caller's
// responsibility.
func (p *Permissions) RequestAudio(prompt func() bool) bool {
	return p.request(&p.audio, "audio input", prompt)
}

// RequestMotion is RequestAudio's analogue for device-orientation events.
func (p *Permissions) RequestMotion(prompt func() bool) bool {
	return p.request(&p.motion, "device motion", prompt)
}

func (p *Permissions) request(state *GrantState, channel string, prompt func() bool) bool {
	p.mu.Lock()
	if *state != GrantUnasked {
		granted := *state == GrantGranted
		p.mu.Unlock()
		return granted
	}
	p.mu.Unlock()

	// The prompt may block on a platform dialog; never hold mu across it.
	granted := prompt != nil && prompt()

	p.mu.Lock()
	if granted {
		*state = GrantGranted
	} else {
		*state = GrantDenied
	}
	sink := p.sink
	p.mu.Unlock()

	if !granted && sink != nil {
		sink(DiagnosticEvent{Kind: KindPermissionDenied, Reason: channel + " permission denied"})
	}
	return granted
}

// AudioGranted reports whether audio input may be opened.
func (p *Permissions) AudioGranted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audio == GrantGranted
}

// MotionGranted reports whether device-orientation events may be consumed.
func (p *Permissions) MotionGranted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.motion == GrantGranted
}
