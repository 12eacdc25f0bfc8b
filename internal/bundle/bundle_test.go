package bundle

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestWriteExtract_RoundTrip(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"manifests/site.pp":             "node default {}",
		"manifests/nodes/web.pp":        "node web {}",
		"modules/ntp/manifests/init.pp": "class ntp {}",
		"secrets/not-shipped.txt":       "nope",
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, root, ManifestsDir, ModulesDir))

	dest := t.TempDir()
	require.NoError(t, Extract(&buf, dest))

	got, err := os.ReadFile(filepath.Join(dest, "manifests", "nodes", "web.pp"))
	require.NoError(t, err)
	assert.Equal(t, "node web {}", string(got))

	got, err = os.ReadFile(filepath.Join(dest, "modules", "ntp", "manifests", "init.pp"))
	require.NoError(t, err)
	assert.Equal(t, "class ntp {}", string(got))

	_, err = os.Stat(filepath.Join(dest, "secrets"))
	assert.True(t, os.IsNotExist(err))
}

func TestWrite_OptionalDirMissing(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"manifests/site.pp": "x"})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, root, ManifestsDir, ModulesDir))

	tr := tar.NewReader(&buf)
	var names []string
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}
	assert.Equal(t, []string{"manifests/", "manifests/site.pp"}, names)
}

func TestWrite_RequiredDirMissing(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, t.TempDir(), ManifestsDir))
}

func TestExtract_RejectsTraversal(t *testing.T) {
	for _, name := range []string{"../evil.pp", "manifests/../../evil.pp", "/etc/passwd"} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			tw := tar.NewWriter(&buf)
			require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: 1, Typeflag: tar.TypeReg}))
			_, _ = tw.Write([]byte("x"))
			require.NoError(t, tw.Close())

			err := Extract(&buf, t.TempDir())
			assert.True(t, errors.Is(err, ErrUnsafePath), "got %v", err)
		})
	}
}

func TestExtract_NotATar(t *testing.T) {
	err := Extract(bytes.NewReader([]byte("<html>502 Bad Gateway</html>")), t.TempDir())
	assert.Error(t, err)
}

func TestExtract_Empty(t *testing.T) {
	err := Extract(bytes.NewReader(nil), t.TempDir())
	assert.Error(t, err)
}
