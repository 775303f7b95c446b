package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	SessionsDirKey    = "sessions.dir"
	sessionFileMode   = 0o600
	sessionDirMode    = 0o700
	sessionsConfigDir = ".st"
	sessionsSubdir    = "sessions"
	sessionFileExt    = ".toml"
	tempFilePattern   = ".session-*.toml.tmp"
)

// Repository stores one TOML document per session under a single directory.
type Repository struct {
	dir string
	mu  *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SessionStore = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	dir := cfg.GetString(SessionsDirKey)
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(homeDir, sessionsConfigDir, sessionsSubdir)
	}

	dir, err := normalizeDir(dir)
	if err != nil {
		return nil, err
	}

	return &Repository{dir: dir, mu: lockForPath(dir)}, nil
}

func (r *Repository) Dir() string {
	return r.dir
}

func (r *Repository) Save(ctx context.Context, token domain.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := r.pathFor(token.ID)
	if err != nil {
		return err
	}

	file := fileSchema{Session: toSchema(token)}
	file.applyDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(path, file)
}

func (r *Repository) Load(ctx context.Context, id domain.TokenID) (domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, err
	}

	path, err := r.pathFor(id)
	if err != nil {
		return domain.Token{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := readSchema(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Token{}, fmt.Errorf("load session %s: %w", id, domain.ErrNotFound)
		}
		return domain.Token{}, err
	}

	token, err := fromSchema(file.Session)
	if err != nil {
		return domain.Token{}, fmt.Errorf("decode session %s: %w", id, err)
	}

	return token, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.TokenID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.TokenID{}, nil
		}
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	ids := make([]domain.TokenID, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, sessionFileExt) {
			continue
		}
		ids = append(ids, domain.TokenID(strings.TrimSuffix(name, sessionFileExt)))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

func (r *Repository) Delete(ctx context.Context, id domain.TokenID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := r.pathFor(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete session %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete session file: %w", err)
	}

	return nil
}

func (r *Repository) pathFor(id domain.TokenID) (string, error) {
	raw := string(id)
	if raw == "" || raw == "." || raw == ".." || strings.HasPrefix(raw, ".") || strings.ContainsAny(raw, `/\`) {
		return "", fmt.Errorf("session id %q is not a valid file name", raw)
	}

	return filepath.Join(r.dir, raw+sessionFileExt), nil
}

func readSchema(path string) (fileSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, err
		}
		return fileSchema{}, fmt.Errorf("read session file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode session file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeDir(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve sessions directory: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(path string, file fileSchema) error {
	if err := os.MkdirAll(r.dir, sessionDirMode); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	tempFile, err := os.CreateTemp(r.dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp session file: %w", err)
	}

	if err := tempFile.Chmod(sessionFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp session file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp session file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(token domain.Token) sessionSchema {
	childIDs := make([]string, 0, len(token.ChildIDs))
	for _, id := range token.ChildIDs {
		childIDs = append(childIDs, string(id))
	}

	endTime := ""
	if token.EndTime != nil {
		endTime = formatTime(*token.EndTime)
	}

	return sessionSchema{
		ID:              string(token.ID),
		ParentID:        string(token.ParentID),
		ChildIDs:        childIDs,
		Initiator:       token.Initiator,
		Name:            token.Name,
		Intent:          token.Intent,
		EnergyCost:      token.EnergyCost,
		DurationMinutes: token.DurationMinutes,
		StartTime:       formatTime(token.StartTime),
		LastActivity:    formatTime(token.LastActivity),
		EndTime:         endTime,
		State:           string(token.State),
		EndReason:       string(token.EndReason),
		Boundaries:      token.Boundaries.Clone(),
	}
}

func fromSchema(session sessionSchema) (domain.Token, error) {
	childIDs := make([]domain.TokenID, 0, len(session.ChildIDs))
	for _, id := range session.ChildIDs {
		childIDs = append(childIDs, domain.TokenID(id))
	}

	startTime, err := parseTime(session.StartTime)
	if err != nil {
		return domain.Token{}, fmt.Errorf("parse start_time: %w", err)
	}
	lastActivity, err := parseTime(session.LastActivity)
	if err != nil {
		return domain.Token{}, fmt.Errorf("parse last_activity: %w", err)
	}

	var endTime *time.Time
	if session.EndTime != "" {
		parsed, err := parseTime(session.EndTime)
		if err != nil {
			return domain.Token{}, fmt.Errorf("parse end_time: %w", err)
		}
		endTime = &parsed
	}

	state := domain.State(session.State)
	if state == "" {
		state = domain.StateActive
	}
	if !state.Valid() {
		return domain.Token{}, fmt.Errorf("unknown state %q", session.State)
	}

	token := domain.Token{
		ID:              domain.TokenID(session.ID),
		ParentID:        domain.TokenID(session.ParentID),
		ChildIDs:        childIDs,
		Initiator:       session.Initiator,
		Name:            session.Name,
		Intent:          session.Intent,
		EnergyCost:      session.EnergyCost,
		Boundaries:      domain.Boundaries(session.Boundaries).Clone(),
		DurationMinutes: session.DurationMinutes,
		StartTime:       startTime,
		LastActivity:    lastActivity,
		EndTime:         endTime,
		State:           state,
		EndReason:       domain.EndReason(session.EndReason),
	}
	token.Normalize()

	return token, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}

	return parsed.UTC(), nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
