package livecmp

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/pthm/livecmp/lib/protocol"
)

//go:embed assets/live.js
var runtimeJS []byte

// AssetPath is where AssetHandler is usually mounted.
const AssetPath = "/live/live.js"

// LoadingConfig configures the global loading indicator.
type LoadingConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Color   string `json:"color" yaml:"color"`
	Height  string `json:"height" yaml:"height"`
	Spinner bool   `json:"spinner" yaml:"spinner"`
}

// ScriptsConfig is passed to the browser runtime.
type ScriptsConfig struct {
	Endpoint  string        `json:"endpoint"`
	AssetPath string        `json:"-"`
	Loading   LoadingConfig `json:"loading"`
	Debug     bool          `json:"debug"`
}

// DefaultScriptsConfig returns the configuration used when none is set.
func DefaultScriptsConfig() ScriptsConfig {
	return ScriptsConfig{
		Endpoint:  protocol.DefaultEndpoint,
		AssetPath: AssetPath,
		Loading: LoadingConfig{
			Enabled: true,
			Color:   "#29d",
			Height:  "3px",
		},
	}
}

// Scripts renders the runtime configuration and script tag. The default
// layout includes it in <head>; custom layouts render Page.Head.
func (m *Manager) Scripts() templ.Component {
	cfg := m.scripts
	cfg.Debug = m.debug
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		raw, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<script>window.LiveConfig = `+string(raw)+`;</script>`); err != nil {
			return err
		}
		_, err = io.WriteString(w, `<script src="`+templ.EscapeString(cfg.AssetPath)+`" defer></script>`)
		return err
	})
}

// AssetHandler serves the browser runtime.
func AssetHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(runtimeJS)
	})
}
