package demo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pthm/livecmp"
)

// Native calls issued by Device.
const (
	NativeVibrate = "device.vibrate"
	NativeShare   = "device.share"
)

// Device talks to the host shell through the native bridge and listens
// for battery updates posted on the window.
type Device struct {
	livecmp.Base
	Battery int
	Shared  int
}

// NewDevice creates a Device.
func NewDevice() livecmp.Component {
	c := &Device{Battery: -1}
	c.Action("vibrate", livecmp.Bind1(c.vibrate))
	c.Action("share", livecmp.Bind1(c.share))
	c.Action("battery", livecmp.Bind1(c.battery))
	return c
}

func (c *Device) Fields() []livecmp.Field {
	return []livecmp.Field{
		livecmp.Value("battery", &c.Battery),
		livecmp.Value("shared", &c.Shared),
	}
}

func (c *Device) vibrate(ctx context.Context, ms int) error {
	livecmp.CallNative(ctx, NativeVibrate, map[string]any{"duration": ms})
	return nil
}

func (c *Device) share(ctx context.Context, url string) error {
	c.Shared++
	livecmp.CallNative(ctx, NativeShare, map[string]any{"url": url})
	return nil
}

// BatteryDetail is the detail of the battery window event posted by the
// host shell.
type BatteryDetail struct {
	Level int `json:"level"`
}

func (c *Device) battery(ctx context.Context, d BatteryDetail) error {
	if d.Level < 0 || d.Level > 100 {
		return fmt.Errorf("battery level %d out of range", d.Level)
	}
	c.Battery = d.Level
	return nil
}

func (c *Device) Render(ctx context.Context) (livecmp.Node, error) {
	return livecmp.Templ(deviceView(c)), nil
}

func batteryLabel(level int) string {
	if level < 0 {
		return "unknown"
	}
	return strconv.Itoa(level) + "%"
}
