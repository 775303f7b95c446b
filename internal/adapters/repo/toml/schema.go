package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int           `toml:"version"`
	Session sessionSchema `toml:"session"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported session schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	ID              string          `toml:"id"`
	ParentID        string          `toml:"parent_id,omitempty"`
	ChildIDs        []string        `toml:"child_ids"`
	Initiator       string          `toml:"initiator"`
	Name            string          `toml:"name"`
	Intent          string          `toml:"intent,omitempty"`
	EnergyCost      int             `toml:"energy_cost"`
	DurationMinutes int             `toml:"duration_minutes"`
	StartTime       string          `toml:"start_time"`
	LastActivity    string          `toml:"last_activity"`
	EndTime         string          `toml:"end_time,omitempty"`
	State           string          `toml:"state"`
	EndReason       string          `toml:"end_reason,omitempty"`
	Boundaries      map[string]bool `toml:"boundaries"`
}
