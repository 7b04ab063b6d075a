// Package artifact implements versioned dataset artifacts: blobs kept in a
// store (local directory, S3 or GCS) and indexed by a SQL registry that also
// tracks the runs consuming and producing them.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an identifier or blob is unknown.
	ErrNotFound = errors.New("artifact not found")
	// ErrPublish wraps every failure to publish an artifact.
	ErrPublish = errors.New("artifact publish failed")
)

// AliasLatest always points at the newest version of an artifact.
const AliasLatest = "latest"

// Run statuses.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"
)

// Link directions between runs and artifact versions.
const (
	DirectionInput  = "input"
	DirectionOutput = "output"
)

// Version is one immutable version of a named artifact.
type Version struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Number      int       `yaml:"version"`
	Type        string    `yaml:"type"`
	Description string    `yaml:"description"`
	Key         string    `yaml:"key"`
	FileName    string    `yaml:"file_name"`
	Digest      string    `yaml:"digest"`
	Size        int64     `yaml:"size"`
	RunID       string    `yaml:"run_id,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
	Aliases     []string  `yaml:"aliases,omitempty"`
}

// Identifier returns the canonical "name:vN" form. Versions count from 0.
func (v *Version) Identifier() string {
	return fmt.Sprintf("%s:v%d", v.Name, v.Number)
}

// Run is one execution of a job that reads and writes artifacts.
type Run struct {
	ID         string
	JobType    string
	Config     map[string]any
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Ref is a parsed artifact identifier. Exactly one of Version and Alias is
// meaningful: an empty Alias selects Version.
type Ref struct {
	Name    string
	Version int
	Alias   string
}

func (r Ref) String() string {
	if r.Alias == "" {
		return fmt.Sprintf("%s:v%d", r.Name, r.Version)
	}
	return r.Name + ":" + r.Alias
}

// ParseRef parses "name", "name:latest", "name:vN" or "name:<alias>". A
// leading "entity/project/" path is ignored.
func ParseRef(identifier string) (Ref, error) {
	id := strings.TrimSpace(identifier)
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}

	name, tag, _ := strings.Cut(id, ":")
	if name == "" {
		return Ref{}, fmt.Errorf("artifact identifier %q has no name", identifier)
	}
	if tag == "" {
		return Ref{Name: name, Alias: AliasLatest}, nil
	}

	if strings.HasPrefix(tag, "v") {
		if n, err := strconv.Atoi(tag[1:]); err == nil && n >= 0 {
			return Ref{Name: name, Version: n}, nil
		}
	}
	return Ref{Name: name, Alias: tag}, nil
}

// ValidateName rejects names that ParseRef could not resolve back: a name may
// not contain "/" or ":".
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("artifact name is empty")
	}
	if strings.ContainsAny(name, "/:") {
		return fmt.Errorf("artifact name %q must not contain '/' or ':'", name)
	}
	return nil
}

// BlobStore holds artifact file contents under string keys.
type BlobStore interface {
	// Put uploads the file at localPath under key.
	Put(ctx context.Context, key, localPath string) error
	// Get downloads key to localPath. A missing key returns ErrNotFound.
	Get(ctx context.Context, key, localPath string) error
	// Kind names the backend, e.g. "local" or "s3".
	Kind() string
}

// Registry indexes artifact versions and runs.
type Registry interface {
	// CreateVersion assigns the next version number for v.Name, stores v and
	// moves the latest alias to it.
	CreateVersion(ctx context.Context, v *Version) error
	// Resolve looks up a reference. Unknown references return ErrNotFound.
	Resolve(ctx context.Context, ref Ref) (*Version, error)
	// Latest lists the latest version of every artifact, ordered by name.
	Latest(ctx context.Context) ([]*Version, error)
	// Versions lists all versions of one artifact, oldest first.
	Versions(ctx context.Context, name string) ([]*Version, error)

	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id, status, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LinkRun(ctx context.Context, runID, versionID, direction string) error

	Close() error
}
