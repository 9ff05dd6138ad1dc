// Package signing produces detached ed25519 signatures over a day's ledger
// files, plus a manifest recording each file's content hash, signature file,
// and self-verification result. A failed self-verification is recorded in
// the manifest but does not delete the signature already on disk; that is
// left to manual remediation.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kaizencycle/hive-ledger/pkg/canonical"
	"github.com/kaizencycle/hive-ledger/pkg/records"
)

// Error reports a signature tool failure, with the file it occurred on.
type Error struct {
	File string
	Err  error
}

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("signing: %v", e.Err)
	}
	return fmt.Sprintf("signing: %s: %v", e.File, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ManifestEntry records the signing outcome for one file.
type ManifestEntry struct {
	File     string `json:"file"`
	Path     string `json:"path"`
	SHA256   string `json:"sha256"`
	Sig      string `json:"sig"`
	SigPath  string `json:"sig_path"`
	VerifyOK bool   `json:"verify_ok"`
}

// Manifest is the signing record for one day.
type Manifest struct {
	Date      string          `json:"date"`
	TS        string          `json:"ts"`
	Signer    string          `json:"signer"`
	PublicKey string          `json:"public_key"`
	Files     []ManifestEntry `json:"files"`
}

// Signer signs files with an ed25519 key.
type Signer struct {
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	Identity string

	clock  func() time.Time
	logger *slog.Logger
}

// NewSigner generates a fresh keypair for the given identity.
func NewSigner(identity string) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("key generation failed: %w", err)}
	}
	return newSigner(priv, pub, identity), nil
}

func newSigner(priv ed25519.PrivateKey, pub ed25519.PublicKey, identity string) *Signer {
	return &Signer{
		priv:     priv,
		pub:      pub,
		Identity: identity,
		clock:    time.Now,
		logger:   slog.Default().With("component", "signing"),
	}
}

// LoadSigner reads a hex-encoded ed25519 seed from path.
func LoadSigner(path, identity string) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{File: path, Err: err}
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, &Error{File: path, Err: fmt.Errorf("invalid key encoding: %w", err)}
	}
	if len(seed) != ed25519.SeedSize {
		return nil, &Error{File: path, Err: fmt.Errorf("invalid seed length %d", len(seed))}
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return newSigner(priv, priv.Public().(ed25519.PublicKey), identity), nil
}

// LoadOrCreateSigner loads the key at path, generating and saving a new one
// if it does not exist.
func LoadOrCreateSigner(path, identity string) (*Signer, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadSigner(path, identity)
	}
	s, err := NewSigner(identity)
	if err != nil {
		return nil, err
	}
	if err := s.Save(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the hex-encoded key seed to path, readable only by the owner.
func (s *Signer) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Error{File: path, Err: err}
	}
	seed := hex.EncodeToString(s.priv.Seed())
	if err := os.WriteFile(path, []byte(seed+"\n"), 0o600); err != nil {
		return &Error{File: path, Err: err}
	}
	return nil
}

// WithClock overrides the clock for testing.
func (s *Signer) WithClock(clock func() time.Time) *Signer {
	s.clock = clock
	return s
}

// PublicKey returns the hex-encoded public key.
func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.pub)
}

// SignFile writes a detached signature over the file's bytes to
// <path>.sig and returns the signature path.
func (s *Signer) SignFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{File: path, Err: err}
	}
	sig := ed25519.Sign(s.priv, data)
	sigPath := path + ".sig"
	if err := os.WriteFile(sigPath, []byte(hex.EncodeToString(sig)+"\n"), 0o644); err != nil {
		return "", &Error{File: path, Err: err}
	}
	return sigPath, nil
}

// VerifyFile checks a detached signature against the file's current bytes.
func (s *Signer) VerifyFile(path, sigPath string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, &Error{File: path, Err: err}
	}
	raw, err := os.ReadFile(sigPath)
	if err != nil {
		return false, &Error{File: sigPath, Err: err}
	}
	sig, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return false, &Error{File: sigPath, Err: fmt.Errorf("invalid signature encoding: %w", err)}
	}
	return ed25519.Verify(s.pub, data, sig), nil
}

// Verify checks a hex signature against data using the given hex public key.
func Verify(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pub, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, &Error{Err: fmt.Errorf("invalid public key hex: %w", err)}
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, &Error{Err: fmt.Errorf("invalid public key size %d", len(pub))}
	}
	sig, err := hex.DecodeString(strings.TrimSpace(sigHex))
	if err != nil {
		return false, &Error{Err: fmt.Errorf("invalid signature hex: %w", err)}
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
}

// SignFiles signs each file, immediately re-verifies each signature, and
// returns the manifest. A verification failure is recorded on the entry, not
// returned as an error, and the signature file is kept on disk.
func (s *Signer) SignFiles(day string, files []string) (*Manifest, error) {
	manifest := &Manifest{
		Date:      day,
		TS:        records.Timestamp(s.clock()),
		Signer:    s.Identity,
		PublicKey: s.PublicKey(),
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{File: path, Err: err}
		}
		sigPath, err := s.SignFile(path)
		if err != nil {
			return nil, err
		}
		ok, err := s.VerifyFile(path, sigPath)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Warn("self-verification failed", "file", path, "sig", sigPath)
		}
		manifest.Files = append(manifest.Files, ManifestEntry{
			File:     filepath.Base(path),
			Path:     path,
			SHA256:   canonical.HashBytes(data),
			Sig:      filepath.Base(sigPath),
			SigPath:  sigPath,
			VerifyOK: ok,
		})
	}
	return manifest, nil
}

// WriteManifest persists the manifest JSON to path.
func WriteManifest(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &Error{File: path, Err: err}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return &Error{File: path, Err: err}
	}
	return nil
}
