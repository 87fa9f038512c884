package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/swarmhost/swarmhost/internal/config/funcs"
	"github.com/swarmhost/swarmhost/internal/config/tree"
	"github.com/swarmhost/swarmhost/internal/provider"
	"github.com/swarmhost/swarmhost/internal/store"
)

// UserSource resolves notification recipients from the persistent
// store.
type UserSource interface {
	Users(ctx context.Context) ([]store.User, error)
	RandomUsers(ctx context.Context, n int) ([]store.User, error)
	UsersByIDs(ctx context.Context, ids []int64) ([]store.User, error)
}

// LiteralSource resolves display text for a literal key. ok is false
// when the literal is not set.
type LiteralSource interface {
	Literal(ctx context.Context, key string) (value string, ok bool, err error)
}

// Rule is one notification rule: when to fire, who receives it, and
// where the message text comes from.
type Rule struct {
	Time    FireTime      `json:"time"`
	Filter  Filter        `json:"filter"`
	Message MessageSource `json:"message"`
}

var _ tree.Node = (*Rule)(nil)

// LeftTime is the duration until the rule's next firing, clamped to
// zero and truncated to whole seconds. These are minute-granularity
// schedules, so sub-second remainders are discarded.
func (r *Rule) LeftTime(start, now time.Time) time.Duration {
	left := r.Time.WhenNext(start, now).Sub(now)
	if left < 0 {
		left = 0
	}
	return left.Truncate(time.Second)
}

// Recipients resolves the rule's recipient list via its filter.
func (r *Rule) Recipients(ctx context.Context, users UserSource) ([]store.User, error) {
	return r.Filter.recipients(ctx, users)
}

// ResolveMessage resolves the message text for one recipient. ok is
// false when the rule produces no message for this recipient, which
// callers treat as "skip", not as an error.
func (r *Rule) ResolveMessage(ctx context.Context, lits LiteralSource, user store.User) (string, bool, error) {
	return r.Message.resolve(ctx, lits, user)
}

// Child implements tree.Node for reattachment paths like
// "notifications.0.filter".
func (r *Rule) Child(name string) (tree.Node, error) {
	switch name {
	case "filter":
		return &r.Filter, nil
	case "message":
		return &r.Message, nil
	default:
		return nil, fmt.Errorf("%w: notification rule has no field %q", tree.ErrNoChild, name)
	}
}

type filterKind int

const (
	filterAll filterKind = iota
	filterRandom
	filterFunc
)

// Filter selects notification recipients: everyone, N at random, or a
// script function returning user IDs. The zero value is "all".
type Filter struct {
	kind   filterKind
	random int
	fn     *funcs.Func
}

var _ tree.FuncSlot = (*Filter)(nil)

// FilterAll sends to every user.
func FilterAll() Filter { return Filter{} }

// FilterRandom sends to n randomly selected users.
func FilterRandom(n int) Filter { return Filter{kind: filterRandom, random: n} }

// FilterFunc delegates recipient selection to a script function that
// returns a list of user IDs.
func FilterFunc(fn *funcs.Func) Filter { return Filter{kind: filterFunc, fn: fn} }

func (f *Filter) recipients(ctx context.Context, users UserSource) ([]store.User, error) {
	switch f.kind {
	case filterAll:
		return users.Users(ctx)
	case filterRandom:
		return users.RandomUsers(ctx, f.random)
	case filterFunc:
		res, err := f.fn.Call()
		if err != nil {
			return nil, fmt.Errorf("filter function: %w", err)
		}
		if res == nil {
			return nil, fmt.Errorf("filter function: %w", provider.ErrNoResult)
		}
		ids, err := provider.As[[]int64](res)
		if err != nil {
			return nil, fmt.Errorf("filter function result: %w", err)
		}
		return users.UsersByIDs(ctx, ids)
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrBadFilter, f.kind)
	}
}

// UnmarshalJSON accepts "all", {"random": N}, a function marker, or a
// bare function name.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var s string
	if json.Unmarshal(data, &s) == nil && s == "all" {
		*f = FilterAll()
		return nil
	}
	var random struct {
		Random *int `json:"random"`
	}
	if err := json.Unmarshal(data, &random); err == nil && random.Random != nil {
		*f = FilterRandom(*random.Random)
		return nil
	}
	if fn, ok, _ := funcs.FromJSON(data); ok {
		*f = FilterFunc(fn)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBadFilter, data)
}

// Child implements tree.Node. A filter is a leaf.
func (f *Filter) Child(name string) (tree.Node, error) {
	return nil, fmt.Errorf("%w: filter has no field %q", tree.ErrLeaf, name)
}

// Attach implements tree.FuncSlot: the slot becomes a live function
// filter.
func (f *Filter) Attach(fn provider.Function) {
	if f.fn == nil {
		f.fn = funcs.Live(fn)
	} else {
		f.fn.Attach(fn)
	}
	f.kind = filterFunc
}

type msgKind int

const (
	msgLiteral msgKind = iota
	msgText
	msgFunc
)

// MessageSource produces the notification text: a literal key looked
// up in the store, inline text, or a script function receiving the
// recipient.
type MessageSource struct {
	kind    msgKind
	literal string
	text    string
	fn      *funcs.Func
}

var _ tree.FuncSlot = (*MessageSource)(nil)

// MessageLiteral resolves the text from the literal store.
func MessageLiteral(key string) MessageSource {
	return MessageSource{kind: msgLiteral, literal: key}
}

// MessageText uses the inline text as-is.
func MessageText(text string) MessageSource {
	return MessageSource{kind: msgText, text: text}
}

// MessageFunc calls a script function with the recipient and uses the
// returned string, or skips the recipient when it returns nothing.
func MessageFunc(fn *funcs.Func) MessageSource {
	return MessageSource{kind: msgFunc, fn: fn}
}

func (m *MessageSource) resolve(ctx context.Context, lits LiteralSource, user store.User) (string, bool, error) {
	switch m.kind {
	case msgLiteral:
		return lits.Literal(ctx, m.literal)
	case msgText:
		return m.text, true, nil
	case msgFunc:
		arg, err := provider.From(user)
		if err != nil {
			return "", false, fmt.Errorf("encode recipient: %w", err)
		}
		res, err := m.fn.Call(arg)
		if err != nil {
			return "", false, fmt.Errorf("message function: %w", err)
		}
		if res == nil {
			return "", false, nil
		}
		text, err := provider.As[string](res)
		if err != nil {
			return "", false, fmt.Errorf("message function result: %w", err)
		}
		return text, true, nil
	default:
		return "", false, fmt.Errorf("%w: unknown kind %d", ErrBadMessage, m.kind)
	}
}

// UnmarshalJSON accepts {"literal": k}, {"text": t}, a function
// marker, or a bare function name.
func (m *MessageSource) UnmarshalJSON(data []byte) error {
	var obj struct {
		Literal *string `json:"literal"`
		Text    *string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Literal != nil {
			*m = MessageLiteral(*obj.Literal)
			return nil
		}
		if obj.Text != nil {
			*m = MessageText(*obj.Text)
			return nil
		}
	}
	if fn, ok, _ := funcs.FromJSON(data); ok {
		*m = MessageFunc(fn)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBadMessage, data)
}

// Child implements tree.Node. A message source is a leaf.
func (m *MessageSource) Child(name string) (tree.Node, error) {
	return nil, fmt.Errorf("%w: message source has no field %q", tree.ErrLeaf, name)
}

// Attach implements tree.FuncSlot: the slot becomes a live function
// source.
func (m *MessageSource) Attach(fn provider.Function) {
	if m.fn == nil {
		m.fn = funcs.Live(fn)
	} else {
		m.fn.Attach(fn)
	}
	m.kind = msgFunc
}
