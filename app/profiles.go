package app

import (
	"context"
	"fmt"
	"io"

	"github.com/kilianp07/crisismatch/config"
	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/logger"
	"github.com/kilianp07/crisismatch/core/model"
	coreprofile "github.com/kilianp07/crisismatch/core/profile"
	infraprofile "github.com/kilianp07/crisismatch/infra/profile"
)

// openProfiles builds the configured profile source, loads the optional seed
// and wraps the result in a last-known-good cache. The closer may be nil.
func openProfiles(ctx context.Context, cfg config.ProfilesConfig, log logger.Logger) (*coreprofile.LastGood, io.Closer, error) {
	var seed []model.ResponderProfile
	if cfg.Seed != "" {
		ps, err := infraprofile.LoadSeed(cfg.Seed)
		if err != nil {
			return nil, nil, err
		}
		seed = ps
	}

	var (
		store  coreprofile.Store
		closer io.Closer
	)
	switch cfg.Backend {
	case "memory":
		store = coreprofile.NewMemoryStore(seed...)
	case "sqlite", "postgres":
		var (
			s   *infraprofile.SQLStore
			err error
		)
		if cfg.Backend == "sqlite" {
			s, err = infraprofile.NewSQLiteStore(cfg.Path)
		} else {
			s, err = infraprofile.NewPostgresStore(cfg.DSN)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s profiles: %w", cfg.Backend, err)
		}
		if err := infraprofile.Seed(ctx, s, seed); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		store, closer = s, s
	case "http":
		s, err := infraprofile.NewHTTPStore(cfg.HTTP)
		if err != nil {
			return nil, nil, err
		}
		store = s
	default:
		return nil, nil, fmt.Errorf("unknown profiles backend %s", cfg.Backend)
	}
	if len(seed) > 0 {
		log.Infof("loaded %d responder profiles from %s", len(seed), cfg.Seed)
	}
	return coreprofile.NewLastGood(store), closer, nil
}

// registerResponders adds every known profile to the registry. Responders
// start Offline unless online is set; presence updates bring them up.
func registerResponders(ctx context.Context, profiles coreprofile.Store, reg *availability.Registry, online bool) (int, error) {
	ps, err := profiles.List(ctx)
	if err != nil {
		return 0, err
	}
	status := model.StatusOffline
	if online {
		status = model.StatusOnline
	}
	for _, p := range ps {
		st := model.ResponderStatus{
			ID:                    p.ID,
			Status:                status,
			MaxConcurrentSessions: p.MaxConcurrentSessions,
			EmergencyAvailable:    p.EmergencyAvailable && online,
			Location:              p.Location,
		}
		if err := reg.Register(st); err != nil {
			return 0, fmt.Errorf("register %s: %w", p.ID, err)
		}
	}
	return len(ps), nil
}
