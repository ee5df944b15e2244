package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func fixedFilesystem(fsType string) func(string) (string, error) {
	return func(string) (string, error) { return fsType, nil }
}

func TestPlacementClassifiesFilesystems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fsType  string
		network bool
	}{
		{fsType: "apfs"},
		{fsType: "0xef53"},
		{fsType: "fuse.overlayfs"},
		{fsType: "nfs", network: true},
		{fsType: "fuse.sshfs", network: true},
		{fsType: " SMBFS ", network: true},
		{fsType: "9p", network: true},
	}
	for _, tt := range tests {
		t.Run(tt.fsType, func(t *testing.T) {
			t.Parallel()
			dbPath := filepath.Join(t.TempDir(), "mecfinder.db")
			p, err := inspectPlacement(dbPath, fixedFilesystem(tt.fsType))
			if err != nil {
				t.Fatalf("inspectPlacement: %v", err)
			}
			if p.Network != tt.network || !p.Known {
				t.Fatalf("placement = %+v, want network %v", p, tt.network)
			}

			err = p.Err()
			if !tt.network {
				if err != nil {
					t.Fatalf("Err() = %v on a local filesystem", err)
				}
				return
			}
			if !errors.Is(err, ErrNetworkFilesystem) {
				t.Fatalf("Err() = %v, want ErrNetworkFilesystem", err)
			}
			for _, want := range []string{"records.sqlite_path", "state.driver: redis"} {
				if !strings.Contains(err.Error(), want) {
					t.Fatalf("error %q should mention %q", err, want)
				}
			}
		})
	}
}

func TestPlacementInspectsNearestExistingParent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dbPath := filepath.Join(root, "data", "nested", "mecfinder.db")

	var inspected string
	p, err := inspectPlacement(dbPath, func(dir string) (string, error) {
		inspected = dir
		return "ext4", nil
	})
	if err != nil {
		t.Fatalf("inspectPlacement: %v", err)
	}
	if inspected != root || p.Dir != root {
		t.Fatalf("inspected %q (placement %q), want %q", inspected, p.Dir, root)
	}
}

func TestPlacementUnsupportedPlatformIsUnknown(t *testing.T) {
	t.Parallel()

	p, err := inspectPlacement(filepath.Join(t.TempDir(), "x.db"), func(string) (string, error) {
		return "", errDetectUnsupported
	})
	if err != nil {
		t.Fatalf("inspectPlacement: %v", err)
	}
	if p.Known || p.Network || p.Err() != nil {
		t.Fatalf("placement = %+v, want unknown and usable", p)
	}
}

func TestPlacementDetectorFailure(t *testing.T) {
	t.Parallel()

	_, err := inspectPlacement(filepath.Join(t.TempDir(), "x.db"), func(string) (string, error) {
		return "", errors.New("statfs denied")
	})
	if err == nil || !strings.Contains(err.Error(), "statfs denied") {
		t.Fatalf("err = %v", err)
	}
}

func TestInspectPlacementLocalTempDir(t *testing.T) {
	t.Parallel()

	p, err := InspectPlacement(filepath.Join(t.TempDir(), "mecfinder.db"))
	if err != nil {
		t.Fatalf("InspectPlacement: %v", err)
	}
	if p.Network {
		t.Fatalf("temp dir reported as network filesystem: %+v", p)
	}
}
