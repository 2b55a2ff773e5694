package modules

import (
	"fmt"
	"log/slog"

	"github.com/nomis52/barline/config"
	"github.com/nomis52/barline/module"
	"github.com/nomis52/barline/progress"
)

// Build constructs the module described by cfg. Config validation has
// already checked the per-type required fields.
func Build(cfg config.ModuleConfig, logger *slog.Logger) (module.Module, error) {
	switch cfg.Type {
	case "datetime":
		return NewDateTime(cfg.Format), nil
	case "todotxt":
		return NewTodoTxt(cfg.Path, cfg.MaxLen)
	case "netcheck":
		return NewNetCheck(cfg.Schedule, cfg.Hosts, cfg.Timeout)
	case "remotecmd":
		return NewRemoteCmd(RemoteCmdConfig{
			Schedule: cfg.Schedule,
			Host:     cfg.Host,
			User:     cfg.User,
			KeyFile:  cfg.KeyFile,
			Command:  cfg.Command,
			Label:    cfg.Label,
		})
	case "progress":
		return progress.New(cfg.ProgressConfig(), logger)
	default:
		return nil, fmt.Errorf("unknown module type %q", cfg.Type)
	}
}
