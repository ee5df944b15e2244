package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrNetworkFilesystem is returned when the SQLite file would live on a
	// network mount, where its locking does not hold.
	ErrNetworkFilesystem = errors.New("sqlite database is on a network filesystem")

	// errDetectUnsupported marks platforms without a statfs call.
	errDetectUnsupported = errors.New("filesystem detection is not supported on this platform")
)

var (
	remoteFilesystems = []string{"9p", "afpfs", "afs", "cifs", "nfs", "nfs4", "smb2", "smbfs", "webdav"}
	// FUSE mounts report as fuse.<driver>; only these drivers are remote.
	remoteFuseDrivers = []string{"gcsfuse", "rclone", "s3fs", "sshfs"}
)

// Placement describes the filesystem a SQLite database file lands on.
type Placement struct {
	Path string `json:"path"`
	// Dir is the nearest existing ancestor of Path, which is what was
	// inspected when the file does not exist yet.
	Dir        string `json:"dir"`
	Filesystem string `json:"filesystem"`
	Network    bool   `json:"network"`
	// Known is false on platforms where the type cannot be detected.
	Known bool `json:"known"`
}

// InspectPlacement reports the filesystem under path.
func InspectPlacement(path string) (Placement, error) {
	return inspectPlacement(path, detectFilesystemType)
}

func inspectPlacement(path string, detect func(string) (string, error)) (Placement, error) {
	p := Placement{Path: path}
	if path == "" {
		return p, fmt.Errorf("sqlite path is empty")
	}

	dir, err := existingAncestor(path)
	if err != nil {
		return p, fmt.Errorf("resolve database path %q: %w", path, err)
	}
	p.Dir = dir

	fsType, err := detect(dir)
	switch {
	case errors.Is(err, errDetectUnsupported):
		p.Filesystem = "unknown"
		return p, nil
	case err != nil:
		return p, fmt.Errorf("detect filesystem for %q: %w", dir, err)
	}
	p.Filesystem = strings.ToLower(strings.TrimSpace(fsType))
	p.Known = true
	p.Network = remoteFilesystem(p.Filesystem)
	return p, nil
}

// Err explains why the placement cannot hold the booking database, or
// returns nil.
func (p Placement) Err() error {
	if !p.Network {
		return nil
	}
	return fmt.Errorf("%w: %q is on %s. Booking compare-and-set and offer markers need local file locks; "+
		"point records.sqlite_path at a local disk or use records.driver: mongo with state.driver: redis",
		ErrNetworkFilesystem, p.Path, p.Filesystem)
}

func remoteFilesystem(fsType string) bool {
	if driver, ok := strings.CutPrefix(fsType, "fuse."); ok {
		return slices.Contains(remoteFuseDrivers, driver)
	}
	return slices.Contains(remoteFilesystems, fsType)
}

func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", dir, err)
		}
		if dir == filepath.Dir(dir) {
			return "", fmt.Errorf("no existing parent for %q", abs)
		}
	}
}
