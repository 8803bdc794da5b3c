package main

import (
	"fmt"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	auditstore "github.com/Kermit457/gICM-sub020/pkg/audit/store"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/state"
	"github.com/Kermit457/gICM-sub020/pkg/config"
)

// openAuditStore builds the configured audit store backend.
func openAuditStore(cfg *config.Config) (audit.Store, error) {
	switch cfg.Audit.Backend {
	case "memory":
		return auditstore.NewMemoryStore(cfg.Audit.MaxEntries), nil
	case "sqlite":
		storeCfg := auditstore.DefaultSQLiteConfig()
		storeCfg.Path = cfg.Audit.Path
		return auditstore.NewSQLiteStore(storeCfg)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}

// openStateBackend builds the configured state persistence backend.
func openStateBackend(cfg *config.Config) (state.Backend, error) {
	switch cfg.State.Backend {
	case "memory":
		return state.NewMemoryBackend(), nil
	case "sqlite":
		return state.NewSQLiteBackend(state.SQLiteBackendConfig{
			DBPath: cfg.State.Path,
		})
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
