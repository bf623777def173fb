// Package demo contains the example components served by `livecmp serve`.
package demo

import (
	"context"

	"github.com/pthm/livecmp"
)

// Counter is the smallest useful component: one field, two actions.
type Counter struct {
	livecmp.Base
	Count int
}

// NewCounter creates a Counter.
func NewCounter() livecmp.Component {
	c := &Counter{}
	c.Action("increment", livecmp.Bind0(c.increment))
	c.Action("decrement", livecmp.Bind0(c.decrement))
	return c
}

func (c *Counter) Fields() []livecmp.Field {
	return []livecmp.Field{
		livecmp.Value("count", &c.Count),
	}
}

func (c *Counter) increment(ctx context.Context) error {
	c.Count++
	return nil
}

// decrement stops at zero.
func (c *Counter) decrement(ctx context.Context) error {
	if c.Count > 0 {
		c.Count--
	}
	return nil
}

func (c *Counter) Render(ctx context.Context) (livecmp.Node, error) {
	return livecmp.Templ(counterView(c)), nil
}
