package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/metrics"
)

// SchemaVersion is the snapshot layout version written by this build.
const SchemaVersion = 1

// Medium is a key/value home for named snapshots. Load returns nil, nil
// when the snapshot does not exist.
type Medium interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, payload []byte) error
	Close() error
}

// SnapshotNames derives the three snapshot names from a prefix.
type SnapshotNames struct {
	Alerts  string
	Records string
	Push    string
}

func NamesFor(prefix string) SnapshotNames {
	return SnapshotNames{
		Alerts:  prefix + "-alerts",
		Records: prefix + "-records",
		Push:    prefix + "-push",
	}
}

type envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

func encodeSnapshot(state any) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{State: raw, Version: SchemaVersion})
}

// decodeSnapshot unpacks payload into state. A missing version is read as
// version 1; anything newer than SchemaVersion is refused.
func decodeSnapshot(name string, payload []byte, state any) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	if env.Version > SchemaVersion {
		return apperr.NewSchemaVersionError(name, env.Version, SchemaVersion)
	}
	if len(env.State) == 0 || string(env.State) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.State, state); err != nil {
		return fmt.Errorf("decode %s state: %w", name, err)
	}
	return nil
}

// peekVersion reads the envelope version without decoding the state.
func peekVersion(payload []byte) int {
	var env struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(payload, &env); err != nil || env.Version == 0 {
		return SchemaVersion
	}
	return env.Version
}

// snapshotter writes one named snapshot. Owners call it while holding
// their own lock so writes land in mutation order.
type snapshotter struct {
	medium  Medium
	name    string
	log     *zap.Logger
	metrics *metrics.Metrics
}

func (s *snapshotter) save(ctx context.Context, state any) error {
	payload, err := encodeSnapshot(state)
	if err == nil {
		err = s.medium.Save(ctx, s.name, payload)
	}
	s.metrics.SnapshotWritten(s.name, err)
	if err != nil {
		s.log.Error("Failed to persist snapshot", zap.String("snapshot", s.name), zap.Error(err))
		return apperr.NewPersistenceError(s.name, err)
	}
	return nil
}

// load returns false when the medium has no snapshot under the name.
func (s *snapshotter) load(ctx context.Context, state any) (bool, error) {
	payload, err := s.medium.Load(ctx, s.name)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", s.name, err)
	}
	if payload == nil {
		return false, nil
	}
	if err := decodeSnapshot(s.name, payload, state); err != nil {
		return false, err
	}
	return true, nil
}
