package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	logOut  io.Writer
	out     io.Writer
}

func newApplication(opts []Option) *application {
	app := &application{
		version: "dev",
		logOut:  os.Stdout,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server and logs.
func WithVersion(v string) Option {
	return func(a *application) {
		if v != "" {
			a.version = v
		}
	}
}

// WithLogOutput sets where structured logs are written (stdout by default).
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		if w != nil {
			a.logOut = w
		}
	}
}

// WithOutput sets where one-shot commands print their JSON results.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		if w != nil {
			a.out = w
		}
	}
}
