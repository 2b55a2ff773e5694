package modules

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/barline/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuild(t *testing.T) {
	todoPath := filepath.Join(t.TempDir(), "todo.txt")
	require.NoError(t, os.WriteFile(todoPath, []byte("buy milk\n"), 0o644))

	tests := []struct {
		name string
		cfg  config.ModuleConfig
	}{
		{
			name: "datetime",
			cfg:  config.ModuleConfig{Name: "clock", Type: "datetime", Format: "15:04"},
		},
		{
			name: "todotxt",
			cfg:  config.ModuleConfig{Name: "todo", Type: "todotxt", Path: todoPath},
		},
		{
			name: "netcheck",
			cfg: config.ModuleConfig{
				Name: "net", Type: "netcheck",
				Schedule: "*/5 * * * *", Hosts: []string{"1.1.1.1:53"},
			},
		},
		{
			name: "remotecmd",
			cfg: config.ModuleConfig{
				Name: "up", Type: "remotecmd",
				Schedule: "* * * * *", Host: "h:22", User: "u",
				KeyFile: "/k", Command: "uptime",
			},
		},
		{
			name: "progress",
			cfg: config.ModuleConfig{
				Name: "transfers", Type: "progress",
				Network: "tcp", Address: "127.0.0.1:0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := Build(tt.cfg, discardLogger())
			require.NoError(t, err)
			assert.NotNil(t, mod)
			if closer, ok := mod.(io.Closer); ok {
				closer.Close()
			}
		})
	}
}

func TestBuild_UnknownType(t *testing.T) {
	_, err := Build(config.ModuleConfig{Name: "x", Type: "weather"}, discardLogger())
	assert.ErrorContains(t, err, "unknown module type")
}

func TestBuild_BadCronSchedule(t *testing.T) {
	_, err := Build(config.ModuleConfig{
		Name: "net", Type: "netcheck",
		Schedule: "bogus", Hosts: []string{"h:1"},
	}, discardLogger())
	assert.Error(t, err)
}
