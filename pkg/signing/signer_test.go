package signing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizencycle/hive-ledger/pkg/canonical"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSignAndVerifyFile(t *testing.T) {
	s, err := NewSigner("node-1")
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "record.json", `{"date":"2025-09-01"}`)
	sigPath, err := s.SignFile(path)
	require.NoError(t, err)
	assert.Equal(t, path+".sig", sigPath)

	ok, err := s.VerifyFile(path, sigPath)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyFailsAfterTamper(t *testing.T) {
	s, err := NewSigner("node-1")
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "record.json", `{"date":"2025-09-01"}`)
	sigPath, err := s.SignFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"date":"2025-09-02"}`), 0o644))
	ok, err := s.VerifyFile(path, sigPath)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s, err := NewSigner("node-1")
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "signer.key")
	require.NoError(t, s.Save(keyPath))

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadSigner(keyPath, "node-1")
	require.NoError(t, err)
	assert.Equal(t, s.PublicKey(), loaded.PublicKey())
}

func TestLoadOrCreateSigner(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "signer.key")

	created, err := LoadOrCreateSigner(keyPath, "node-1")
	require.NoError(t, err)
	loaded, err := LoadOrCreateSigner(keyPath, "node-1")
	require.NoError(t, err)
	assert.Equal(t, created.PublicKey(), loaded.PublicKey())
}

func TestLoadSignerRejectsBadKey(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSigner(writeFile(t, dir, "bad-hex.key", "zz"), "n")
	assert.Error(t, err)
	_, err = LoadSigner(writeFile(t, dir, "short.key", "abcd"), "n")
	assert.Error(t, err)
}

func TestSignFilesManifest(t *testing.T) {
	s, err := NewSigner("node-1")
	require.NoError(t, err)
	s.WithClock(func() time.Time { return time.Date(2025, 9, 1, 23, 0, 0, 0, time.UTC) })

	dir := t.TempDir()
	seed := writeFile(t, dir, "2025-09-01.seed.json", `{"type":"seed"}`)
	seal := writeFile(t, dir, "2025-09-01.seal.json", `{"type":"seal"}`)

	manifest, err := s.SignFiles("2025-09-01", []string{seed, seal})
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", manifest.Date)
	assert.Equal(t, "node-1", manifest.Signer)
	assert.Equal(t, s.PublicKey(), manifest.PublicKey)
	assert.Equal(t, "2025-09-01T23:00:00Z", manifest.TS)
	require.Len(t, manifest.Files, 2)

	for _, entry := range manifest.Files {
		assert.True(t, entry.VerifyOK)
		data, err := os.ReadFile(entry.Path)
		require.NoError(t, err)
		assert.Equal(t, canonical.HashBytes(data), entry.SHA256)
		_, err = os.Stat(entry.SigPath)
		assert.NoError(t, err)
	}
}

func TestWriteManifest(t *testing.T) {
	s, err := NewSigner("node-1")
	require.NoError(t, err)
	dir := t.TempDir()
	seed := writeFile(t, dir, "2025-09-01.seed.json", `{"type":"seed"}`)

	manifest, err := s.SignFiles("2025-09-01", []string{seed})
	require.NoError(t, err)

	path := filepath.Join(dir, "2025-09-01.sign-manifest.json")
	require.NoError(t, WriteManifest(manifest, path))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestPackageVerify(t *testing.T) {
	s, err := NewSigner("node-1")
	require.NoError(t, err)

	data := []byte("attested bytes")
	path := writeFile(t, t.TempDir(), "data", string(data))
	sigPath, err := s.SignFile(path)
	require.NoError(t, err)
	sigHex, err := os.ReadFile(sigPath)
	require.NoError(t, err)

	ok, err := Verify(s.PublicKey(), string(sigHex), data)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(s.PublicKey(), string(sigHex), []byte("other bytes"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Verify("nothex", string(sigHex), data)
	assert.Error(t, err)
}
