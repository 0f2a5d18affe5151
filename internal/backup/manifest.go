package backup

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/barstock/stock-cli/internal/model"
)

const (
	manifestSuffix = ".manifest.yaml"
	corruptSuffix  = ".corrupt"
	tempSuffix     = ".tmp"

	artifactTimeLayout = "20060102_150405"
)

// Manifest is the sidecar record written next to every artifact. Checksum
// and SizeBytes describe the uncompressed store content, not the artifact
// file, so compressed and plain snapshots of the same store carry the same
// checksum.
type Manifest struct {
	Name       string    `yaml:"name"`
	StoreFile  string    `yaml:"store_file"`
	CreatedAt  time.Time `yaml:"created_at"`
	SizeBytes  int64     `yaml:"size_bytes"`
	Checksum   string    `yaml:"checksum"`
	Compressed bool      `yaml:"compressed"`
}

// Entry converts the manifest into the catalog entry for the artifact at path.
func (m Manifest) Entry(path string) model.BackupEntry {
	return model.BackupEntry{
		Path:       path,
		Name:       m.Name,
		CreatedAt:  m.CreatedAt,
		SizeBytes:  m.SizeBytes,
		Checksum:   m.Checksum,
		Compressed: m.Compressed,
	}
}

func writeManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "backup: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "backup: write manifest")
	}
	return nil
}

// readManifest returns nil without error when no sidecar exists: artifacts
// produced by hand or by older tooling are still listable and restorable.
func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "backup: read manifest")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "backup: parse manifest %s", filepath.Base(path))
	}
	return &m, nil
}

func manifestPath(artifactPath string) string {
	return artifactPath + manifestSuffix
}

func corruptMarkerPath(artifactPath string) string {
	return artifactPath + corruptSuffix
}

// artifactName builds <store-stem>_backup_<YYYYMMDD>_<HHMMSS><ext>[.gz],
// keeping the store file's own extension so the artifact is recognizable.
func artifactName(storePath string, ts time.Time, compress bool) string {
	name := artifactStem(storePath) + "_backup_" + ts.Format(artifactTimeLayout) + artifactExt(storePath)
	if compress {
		name += ".gz"
	}
	return name
}

// safetyName builds the name for the pre-restore snapshot of the live store.
// Safety backups are never compressed.
func safetyName(storePath string, ts time.Time) string {
	return artifactStem(storePath) + "_safety_" + ts.Format(artifactTimeLayout) + artifactExt(storePath)
}

func artifactStem(storePath string) string {
	base := filepath.Base(storePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func artifactExt(storePath string) string {
	if ext := filepath.Ext(filepath.Base(storePath)); ext != "" {
		return ext
	}
	return ".db"
}

// isArtifact reports whether a directory entry name is a snapshot rather
// than a sidecar or scratch file.
func isArtifact(name string) bool {
	if strings.HasSuffix(name, manifestSuffix) ||
		strings.HasSuffix(name, corruptSuffix) ||
		strings.HasSuffix(name, tempSuffix) {
		return false
	}
	return strings.Contains(name, "_backup_") || strings.Contains(name, "_safety_")
}

func isCompressedName(name string) bool {
	return strings.HasSuffix(name, ".gz")
}

// artifactTime recovers the timestamp embedded in an artifact name. Used as
// the created-at fallback for artifacts without a manifest.
func artifactTime(name string) (time.Time, bool) {
	for _, tag := range []string{"_backup_", "_safety_"} {
		i := strings.Index(name, tag)
		if i < 0 {
			continue
		}
		rest := name[i+len(tag):]
		if len(rest) < len(artifactTimeLayout) {
			return time.Time{}, false
		}
		t, err := time.Parse(artifactTimeLayout, rest[:len(artifactTimeLayout)])
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
