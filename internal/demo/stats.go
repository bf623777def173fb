package demo

import (
	"context"
	"sort"

	"github.com/a-h/templ"

	"github.com/pthm/livecmp"
)

// Stats loads its numbers after the page is shown. The placeholder
// carries the signed range parameter.
type Stats struct {
	livecmp.Base
	source StatsSource

	Range  string
	Values map[string]int
}

// NewStats returns a lazy Stats factory reading from source.
func NewStats(source StatsSource) livecmp.Factory {
	return func() livecmp.Component {
		c := &Stats{source: source, Range: "week", Values: map[string]int{}}
		c.SetLazy(true)
		c.Action("setRange", livecmp.Bind1(c.setRange))
		return c
	}
}

func (c *Stats) Fields() []livecmp.Field {
	return []livecmp.Field{
		livecmp.Value("range", &c.Range),
		livecmp.Value("values", &c.Values),
	}
}

func (c *Stats) Mount(ctx context.Context, params map[string]any) {
	if r, ok := params["range"].(string); ok && r != "" {
		c.Range = r
	}
	if err := c.load(ctx); err != nil {
		c.AddError("values", "Stats are unavailable right now.")
	}
}

func (c *Stats) setRange(ctx context.Context, r string) error {
	c.Range = r
	return c.load(ctx)
}

func (c *Stats) load(ctx context.Context) error {
	values, err := c.source.Stats(ctx, c.Range)
	if err != nil {
		return err
	}
	c.Values = values
	return nil
}

func (c *Stats) Placeholder(params map[string]any) templ.Component {
	return statsLoading()
}

func (c *Stats) Render(ctx context.Context) (livecmp.Node, error) {
	return livecmp.Templ(statsView(c)), nil
}

func (c *Stats) keys() []string {
	keys := make([]string, 0, len(c.Values))
	for k := range c.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
