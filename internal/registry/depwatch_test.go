package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aemelyanovff/dart-context/internal/persist"
)

func writeLock(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pubspec.lock"), []byte(contents), 0o644))
}

const lockV1 = `
packages:
  logging:
    dependency: "direct main"
    description:
      name: logging
      url: "https://pub.dev"
    source: hosted
    version: "1.2.0"
`

const lockV2Added = `
packages:
  logging:
    dependency: "direct main"
    description:
      name: logging
      url: "https://pub.dev"
    source: hosted
    version: "1.2.0"
  path:
    dependency: "direct main"
    description:
      name: path
      url: "https://pub.dev"
    source: hosted
    version: "1.9.0"
`

const lockV3Changed = `
packages:
  logging:
    dependency: "direct main"
    description:
      name: logging
      url: "https://pub.dev"
    source: hosted
    version: "1.3.0"
  path:
    dependency: "direct main"
    description:
      name: path
      url: "https://pub.dev"
    source: hosted
    version: "1.9.0"
`

// TestReloadOnChange_DetectsAddedAndChanged verifies the supplemented
// version-change-reload behavior on top of spec.md §4.7's baseline
// added-dependency detection.
func TestReloadOnChange_DetectsAddedAndChanged(t *testing.T) {
	projectDir := t.TempDir()
	globalCache := t.TempDir()

	writeLock(t, projectDir, lockV1)
	snap, err := NewDependencySnapshot(projectDir)
	require.NoError(t, err)

	project := singleClassIndex(t, projectDir, "Project", "Project")
	reg := New(project, globalCache, t.TempDir())
	seedHostedArtifact(t, reg, "logging", "1.2.0")

	writeLock(t, projectDir, lockV2Added)
	seedHostedArtifact(t, reg, "path", "1.9.0")

	diff, err := reg.ReloadOnChange(projectDir, snap)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"path"}, diff.Added)
	assert.Empty(t, diff.Changed)
	assert.Contains(t, reg.LoadedVersions(ProvenanceHosted), "path-1.9.0")

	writeLock(t, projectDir, lockV3Changed)
	seedHostedArtifact(t, reg, "logging", "1.3.0")

	diff2, err := reg.ReloadOnChange(projectDir, snap)
	require.NoError(t, err)
	assert.Empty(t, diff2.Added)
	assert.ElementsMatch(t, []string{"logging"}, diff2.Changed)
	assert.NotContains(t, reg.LoadedVersions(ProvenanceHosted), "logging-1.2.0")
	assert.Contains(t, reg.LoadedVersions(ProvenanceHosted), "logging-1.3.0")
}

func seedHostedArtifact(t *testing.T, reg *Registry, name, version string) {
	t.Helper()
	src := t.TempDir()
	idx := singleClassIndex(t, src, name, name)
	require.NoError(t, persist.Save(idx, src, persist.TypeHosted, name, version))
	require.NoError(t, copyDir(t, src, reg.cacheDirFor(ProvenanceHosted, name+"-"+version)))
}
