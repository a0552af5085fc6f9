package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/oshokin/modsync/internal/domain/modpack"
)

// filePermissions is the mode of the state file.
const filePermissions = 0o644

// Record field names.
const (
	fieldCommit    = "commit"
	fieldBranch    = "branch"
	fieldRemoteURL = "remote_url"
	fieldInstance  = "instance"
	fieldTimestamp = "timestamp"
	fieldStats     = "stats"
	fieldEntries   = "entries"
	fieldDeleted   = "deleted"
	fieldMissing   = "missing"
	fieldCopied    = "copied"
	fieldSkipped   = "skipped"
	fieldActor     = "actor"
	fieldHostname  = "hostname"
	fieldUsername  = "username"
)

// Repository defines persistence operations for the deployment record.
type Repository interface {
	Load(ctx context.Context) (*modpack.Deployment, error)
	Save(ctx context.Context, deployment *modpack.Deployment) error
}

// FileRepository persists the deployment record to a JSON file on disk.
// The record is a protobuf Struct encoded with protojson; the timestamp uses
// the RFC 3339 form of a protobuf Timestamp.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")
	// errMalformed is returned when the state file lacks a required field.
	errMalformed = errors.New("malformed state record")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*modpack.Deployment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var record structpb.Struct
	if err = protojson.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromStruct(&record)
}

// Save writes the record to disk, replacing the previous one.
func (r *FileRepository) Save(_ context.Context, deployment *modpack.Deployment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := toStruct(deployment)
	if err != nil {
		return err
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, filePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// toStruct converts the domain record into a protobuf Struct.
func toStruct(deployment *modpack.Deployment) (*structpb.Struct, error) {
	var timestamp string

	if !deployment.Timestamp.IsZero() {
		encoded, err := protojson.Marshal(timestamppb.New(deployment.Timestamp))
		if err != nil {
			return nil, fmt.Errorf("encode timestamp: %w", err)
		}

		// A Timestamp encodes as a quoted JSON string.
		timestamp = string(encoded[1 : len(encoded)-1])
	}

	stats := deployment.Stats

	record, err := structpb.NewStruct(map[string]any{
		fieldCommit:    deployment.Commit,
		fieldBranch:    deployment.Branch,
		fieldRemoteURL: deployment.RemoteURL,
		fieldInstance:  deployment.Instance,
		fieldTimestamp: timestamp,
		fieldStats: map[string]any{
			fieldEntries: stats.Entries,
			fieldDeleted: stats.Deleted,
			fieldMissing: stats.Missing,
			fieldCopied:  stats.Copied,
			fieldSkipped: stats.Skipped,
		},
		fieldActor: map[string]any{
			fieldHostname: deployment.Actor.Hostname,
			fieldUsername: deployment.Actor.Username,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	return record, nil
}

// fromStruct converts a protobuf Struct back into the domain record.
func fromStruct(record *structpb.Struct) (*modpack.Deployment, error) {
	fields := record.GetFields()

	commit := fields[fieldCommit].GetStringValue()
	if commit == "" {
		return nil, fmt.Errorf("%w: %s is missing", errMalformed, fieldCommit)
	}

	deployment := &modpack.Deployment{
		Commit:    commit,
		Branch:    fields[fieldBranch].GetStringValue(),
		RemoteURL: fields[fieldRemoteURL].GetStringValue(),
		Instance:  fields[fieldInstance].GetStringValue(),
	}

	if raw := fields[fieldTimestamp].GetStringValue(); raw != "" {
		var timestamp timestamppb.Timestamp
		if err := protojson.Unmarshal([]byte(`"`+raw+`"`), &timestamp); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errMalformed, fieldTimestamp, err)
		}

		deployment.Timestamp = timestamp.AsTime()
	}

	stats := fields[fieldStats].GetStructValue().GetFields()
	deployment.Stats = modpack.Stats{
		Entries: int(stats[fieldEntries].GetNumberValue()),
		Deleted: int(stats[fieldDeleted].GetNumberValue()),
		Missing: int(stats[fieldMissing].GetNumberValue()),
		Copied:  int(stats[fieldCopied].GetNumberValue()),
		Skipped: int(stats[fieldSkipped].GetNumberValue()),
	}

	actor := fields[fieldActor].GetStructValue().GetFields()
	deployment.Actor = modpack.Actor{
		Hostname: actor[fieldHostname].GetStringValue(),
		Username: actor[fieldUsername].GetStringValue(),
	}

	return deployment, nil
}

// Now returns the current time in UTC truncated to seconds, the precision
// recorded for deployments.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
