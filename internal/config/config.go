// Package config defines the typed configuration a bot script
// produces, and the function-injecting deserialization pipeline that
// builds it from a raw engine value tree.
package config

import (
	"fmt"
	"time"

	"github.com/swarmhost/swarmhost/internal/config/dialog"
	"github.com/swarmhost/swarmhost/internal/config/notify"
	"github.com/swarmhost/swarmhost/internal/config/tree"
)

// RunnerConfig is the root configuration of one bot instance.
// Immutable after Decode; a script reload produces an entirely new
// tree, never a mutation of the old one.
type RunnerConfig struct {
	Version float64 `json:"version"`
	// Timezone is a signed hour offset relative to UTC: 3 means
	// UTC+3, -2 means UTC-2.
	Timezone      int            `json:"timezone"`
	Dialog        dialog.Dialog  `json:"dialog"`
	Notifications []*notify.Rule `json:"notifications"`

	createdAt time.Time
}

// Provider produces a fully resolved RunnerConfig from a bot script.
// The script-runtime actor implements it.
type Provider interface {
	InitConfig(source string) (*RunnerConfig, error)
}

// CreatedAt is the configuration's creation instant shifted into the
// configured timezone offset.
func (c *RunnerConfig) CreatedAt() time.Time {
	return c.Timezoned(c.createdAt)
}

// Timezoned shifts a UTC instant by the configured hour offset.
func (c *RunnerConfig) Timezoned(t time.Time) time.Time {
	return t.Add(time.Duration(c.Timezone) * time.Hour)
}

// GetCommandMessage looks up the message for a command (without the
// leading slash), with the literal defaulted to the command name.
func (c *RunnerConfig) GetCommandMessage(command string) (dialog.Message, bool) {
	bm, ok := c.Dialog.Commands[command]
	if !ok {
		return dialog.Message{}, false
	}
	return bm.FillLiteral(command).UpdateDefaults(), true
}

// GetCommandMessageVarianted looks up the per-variant message for a
// command, falling back to the plain command message when the command
// has no variant-specific definition.
func (c *RunnerConfig) GetCommandMessageVarianted(command, variant string) (dialog.Message, bool) {
	if _, ok := c.Dialog.Commands[command]; !ok {
		return dialog.Message{}, false
	}
	variants, ok := c.Dialog.Variants[command]
	if !ok {
		return c.GetCommandMessage(command)
	}
	bm, ok := variants[variant]
	if !ok {
		return c.GetCommandMessage(command)
	}
	return bm.FillLiteral(command).UpdateDefaults(), true
}

// GetCallbackMessage looks up the message for a button callback name,
// with the literal defaulted to the callback name.
func (c *RunnerConfig) GetCallbackMessage(callback string) (dialog.Message, bool) {
	bm, ok := c.Dialog.Buttons[callback]
	if !ok {
		return dialog.Message{}, false
	}
	return bm.FillLiteral(callback), true
}

// GetStateMessage looks up the handler message for a dialog state,
// used for plain-text messages from users in that state. The literal
// defaults to the state name.
func (c *RunnerConfig) GetStateMessage(state string) (dialog.Message, bool) {
	bm, ok := c.Dialog.StatefulHandlers[state]
	if !ok {
		return dialog.Message{}, false
	}
	return bm.FillLiteral(state), true
}

// NearestBatch selects the next notification batch relative to now
// (a UTC instant). Returns nil when nothing is pending right now;
// fixed daily rules recur, so callers must keep re-polling.
func (c *RunnerConfig) NearestBatch(now time.Time) *notify.Batch {
	return notify.Nearest(c.Notifications, c.CreatedAt(), c.Timezoned(now))
}

var _ tree.Node = (*RunnerConfig)(nil)

// Child implements tree.Node, the root of function reattachment paths.
func (c *RunnerConfig) Child(name string) (tree.Node, error) {
	switch name {
	case "dialog":
		return &c.Dialog, nil
	case "notifications":
		return ruleList(c.Notifications), nil
	default:
		return nil, fmt.Errorf("%w: config has no field %q", tree.ErrNoChild, name)
	}
}

type ruleList []*notify.Rule

func (r ruleList) Child(name string) (tree.Node, error) {
	return tree.SliceChild(r, name)
}
