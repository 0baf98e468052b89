package profile

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/crisismatch/core/model"
	coreprofile "github.com/kilianp07/crisismatch/core/profile"
)

type seedFile struct {
	Responders []model.ResponderProfile `yaml:"responders"`
}

// LoadSeed reads a YAML roster of responder profiles.
func LoadSeed(path string) ([]model.ResponderProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	for i, p := range f.Responders {
		if p.ID == "" {
			return nil, fmt.Errorf("seed %s: responder %d has no id", path, i)
		}
	}
	return f.Responders, nil
}

// Seed writes every profile into w.
func Seed(ctx context.Context, w coreprofile.Writer, ps []model.ResponderProfile) error {
	for _, p := range ps {
		if err := w.Upsert(ctx, p); err != nil {
			return fmt.Errorf("seed %s: %w", p.ID, err)
		}
	}
	return nil
}
