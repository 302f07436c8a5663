package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectSinglePackage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pubspec.yaml"), "name: my_app\n")

	ws, err := Detect(filepath.Join(root, "lib"))
	require.NoError(t, err)
	assert.Equal(t, ShapeSingle, ws.Shape)
	require.Len(t, ws.Packages, 1)
	assert.Equal(t, "my_app", ws.Packages[0].Name)
}

func TestDetectDeclarativeWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pubspec.yaml"), "name: root\nworkspace:\n  - packages/a\n  - packages/b\n")
	writeFile(t, filepath.Join(root, "packages/a/pubspec.yaml"), "name: pkg_a\n")
	writeFile(t, filepath.Join(root, "packages/b/pubspec.yaml"), "name: pkg_b\n")

	ws, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, ShapeDeclarative, ws.Shape)
	require.Len(t, ws.Packages, 2)
	assert.Equal(t, "pkg_a", ws.Packages[0].Name)
	assert.Equal(t, "pkg_b", ws.Packages[1].Name)
}

func TestDetectToolDrivenWorkspaceHonorsIgnore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pubspec.yaml"), "name: root\n")
	writeFile(t, filepath.Join(root, "melos.yaml"), "name: root\npackages:\n  - packages/*\nignore:\n  - packages/skip_me\n")
	writeFile(t, filepath.Join(root, "packages/keep/pubspec.yaml"), "name: keep\n")
	writeFile(t, filepath.Join(root, "packages/skip_me/pubspec.yaml"), "name: skip_me\n")

	ws, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, ShapeToolDriven, ws.Shape)
	require.Len(t, ws.Packages, 1)
	assert.Equal(t, "keep", ws.Packages[0].Name)
}

// TestFindPackageForPathInnermostWins verifies testable property 8: for
// every workspace package P and every source file F under P's directory,
// findPackageForPath(F) returns P, with the innermost package winning
// when packages nest.
func TestFindPackageForPathInnermostWins(t *testing.T) {
	root := t.TempDir()
	outer := filepath.Join(root, "packages/outer")
	inner := filepath.Join(root, "packages/outer/nested/inner")

	ws := &Workspace{
		Shape: ShapeDeclarative,
		Root:  root,
		Packages: []Package{
			{Name: "outer", RelativePath: "packages/outer", AbsolutePath: outer},
			{Name: "inner", RelativePath: "packages/outer/nested/inner", AbsolutePath: inner},
		},
	}

	pkg, ok := ws.FindPackageForPath(filepath.Join(outer, "lib/a.dart"))
	require.True(t, ok)
	assert.Equal(t, "outer", pkg.Name)

	pkg, ok = ws.FindPackageForPath(filepath.Join(inner, "lib/b.dart"))
	require.True(t, ok)
	assert.Equal(t, "inner", pkg.Name, "the nested package should win over its enclosing package")

	_, ok = ws.FindPackageForPath(filepath.Join(root, "README.md"))
	assert.False(t, ok)
}
