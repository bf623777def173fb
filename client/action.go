package client

import (
	"math"
	"strconv"
	"strings"

	"github.com/pthm/livecmp/lib/protocol"
)

// Action is a parsed action string.
type Action struct {
	Name string
	Args []any

	// HasArgs is true when the string had an argument list, even an
	// empty one.
	HasArgs bool
}

// ParseAction parses "name" or "name(arg, ...)". Numeric arguments become
// float64, quoted ones their unquoted string; anything else is kept as
// the raw token, which is how $event reaches the dispatcher.
//
//	ParseAction("toggle(3)")     // {toggle [3] true}
//	ParseAction("go('docs')")    // {go [docs] true}
//	ParseAction("search")        // {search [] false}
func ParseAction(raw string) Action {
	raw = strings.TrimSpace(raw)
	open := strings.IndexByte(raw, '(')
	if open < 0 {
		return Action{Name: raw, Args: []any{}}
	}
	inner := raw[open+1:]
	if end := strings.LastIndexByte(inner, ')'); end >= 0 {
		inner = inner[:end]
	}
	act := Action{Name: strings.TrimSpace(raw[:open]), Args: []any{}, HasArgs: true}
	for _, tok := range splitArgs(inner) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		act.Args = append(act.Args, parseArg(tok))
	}
	return act
}

func parseArg(tok string) any {
	if f, err := strconv.ParseFloat(tok, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	if len(tok) >= 2 {
		q := tok[0]
		if (q == '\'' || q == '"') && tok[len(tok)-1] == q {
			return tok[1 : len(tok)-1]
		}
	}
	return tok
}

// splitArgs splits on commas outside quotes.
func splitArgs(s string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote rune
	)
	for _, ch := range s {
		switch {
		case quote != 0:
			cur.WriteRune(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			cur.WriteRune(ch)
			quote = ch
		case ch == ',':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(ch)
		}
	}
	return append(out, cur.String())
}

// resolve substitutes $event arguments with arg.
func (a Action) resolve(arg any) []any {
	args := make([]any, len(a.Args))
	for i, v := range a.Args {
		if v == protocol.EventArg {
			v = arg
		}
		args[i] = v
	}
	return args
}
