// Package dialog holds the per-command and per-button message
// definitions of a bot configuration.
package dialog

import (
	"fmt"

	"github.com/swarmhost/swarmhost/internal/config/funcs"
	"github.com/swarmhost/swarmhost/internal/config/tree"
)

// Dialog maps command names, button callback names and dialog states
// to their message definitions.
type Dialog struct {
	Commands         map[string]*Message            `json:"commands"`
	Buttons          map[string]*Message            `json:"buttons"`
	StatefulHandlers map[string]*Message            `json:"stateful_msg_handlers"`
	Variants         map[string]map[string]*Message `json:"variants"`
}

// Message defines how the bot reacts to one command or button: text to
// display (a literal key), an optional keyboard, an optional target
// dialog state, and an optional script handler consulted before
// default handling runs.
type Message struct {
	Literal *string     `json:"literal"`
	Replace bool        `json:"replace"`
	Buttons *Keyboard   `json:"buttons"`
	State   string      `json:"state"`
	Meta    *bool       `json:"meta"`
	Handler *funcs.Func `json:"handler"`
}

// FillLiteral defaults the literal key to the command or button name
// when none was given.
func (m Message) FillLiteral(name string) Message {
	if m.Literal == nil {
		m.Literal = &name
	}
	return m
}

// UpdateDefaults applies derived defaults: the start command counts as
// onboarding unless the script said otherwise.
func (m Message) UpdateDefaults() Message {
	if m.Meta == nil && m.Literal != nil && *m.Literal == "start" {
		meta := true
		m.Meta = &meta
	}
	return m
}

// IsMeta reports whether handling this message should append the
// command argument to the user's onboarding metas.
func (m Message) IsMeta() bool {
	return m.Meta != nil && *m.Meta
}

var (
	_ tree.Node = (*Dialog)(nil)
	_ tree.Node = (*Message)(nil)
)

// Child implements tree.Node.
func (d *Dialog) Child(name string) (tree.Node, error) {
	switch name {
	case "commands":
		return messageMap(d.Commands), nil
	case "buttons":
		return messageMap(d.Buttons), nil
	case "stateful_msg_handlers":
		return messageMap(d.StatefulHandlers), nil
	case "variants":
		return variantMap(d.Variants), nil
	default:
		return nil, fmt.Errorf("%w: dialog has no field %q", tree.ErrNoChild, name)
	}
}

// Child implements tree.Node.
func (m *Message) Child(name string) (tree.Node, error) {
	switch name {
	case "handler":
		if m.Handler == nil {
			return nil, fmt.Errorf("%w: message has no handler", tree.ErrNoChild)
		}
		return m.Handler, nil
	case "buttons":
		if m.Buttons == nil {
			return nil, fmt.Errorf("%w: message has no keyboard", tree.ErrNoChild)
		}
		return m.Buttons, nil
	default:
		return nil, fmt.Errorf("%w: message has no field %q", tree.ErrNoChild, name)
	}
}

type messageMap map[string]*Message

func (m messageMap) Child(name string) (tree.Node, error) {
	return tree.MapChild(m, name)
}

type variantMap map[string]map[string]*Message

func (v variantMap) Child(name string) (tree.Node, error) {
	inner, ok := v[name]
	if !ok {
		return nil, fmt.Errorf("%w: no variants for %q", tree.ErrNoChild, name)
	}
	return messageMap(inner), nil
}
