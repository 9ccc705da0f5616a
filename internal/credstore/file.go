package credstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/log"
)

const (
	fileFormatVersion = 1
	pbkdf2Iterations  = 100000
	keyLength         = 32
	saltLength        = 16
)

// errCorruptFile marks a store file that is not a readable document.
var errCorruptFile = stderrors.New("corrupt store file")

// fileDocument is the on-disk layout. Each entry is sealed on its own with
// AES-GCM; the nonce is prepended to the ciphertext.
type fileDocument struct {
	Version int               `json:"version"`
	Salt    []byte            `json:"salt"`
	Entries map[string][]byte `json:"entries"`
}

// File stores entries in a single AES-GCM encrypted JSON file. The key is
// derived with PBKDF2 from the passphrase and a per-file random salt.
type File struct {
	mu         sync.Mutex
	path       string
	passphrase string
	logger     *log.Logger
}

// NewFile opens (lazily) the encrypted file at path. An empty passphrase
// falls back to a value bound to the current host and user.
func NewFile(path, passphrase string) (*File, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeStoreOpen, "file backend needs a path")
	}
	if passphrase == "" {
		passphrase = machinePassphrase()
	}
	return &File{
		path:       path,
		passphrase: passphrase,
		logger:     log.DefaultLogger().Component("credstore"),
	}, nil
}

func (f *File) Name() string { return "file" }

// Path returns the backing file location.
func (f *File) Path() string { return f.path }

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil || doc == nil {
		return nil, err
	}
	sealed, ok := doc.Entries[key]
	if !ok {
		return nil, nil
	}
	plain, err := open(f.key(doc.Salt), sealed)
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreDecrypt, f.Name(), err).
			WithSuggestion("Check TENDERDESK_STORE_PASSPHRASE, or run 'tenderdesk auth logout' to discard the stored session")
	}
	return plain, nil
}

func (f *File) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if stderrors.Is(err, errCorruptFile) {
		f.logger.WithError(err).Warn("replacing unreadable credential file", "path", f.path)
		doc, err = nil, nil
	}
	if err != nil {
		return err
	}
	if doc == nil {
		salt := make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		doc = &fileDocument{Version: fileFormatVersion, Salt: salt, Entries: map[string][]byte{}}
	}

	sealed, err := seal(f.key(doc.Salt), value)
	if err != nil {
		return err
	}
	doc.Entries[key] = sealed
	return f.write(doc)
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if stderrors.Is(err, errCorruptFile) {
		// Nothing in it can be recovered, so clearing means removing it.
		return f.remove()
	}
	if err != nil || doc == nil {
		return err
	}
	for _, k := range keys {
		delete(doc.Entries, k)
	}
	if len(doc.Entries) == 0 {
		return f.remove()
	}
	return f.write(doc)
}

func (f *File) remove() error {
	if err := os.Remove(f.path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) Close() error { return nil }

func (f *File) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(f.passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)
}

// read returns nil when the file does not exist yet.
func (f *File) read() (*fileDocument, error) {
	data, err := os.ReadFile(f.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreDecrypt, f.Name(), fmt.Errorf("%w: %w", errCorruptFile, err)).
			WithSuggestion("Run 'tenderdesk auth logout' to discard the stored session")
	}
	if doc.Entries == nil {
		doc.Entries = map[string][]byte{}
	}
	return &doc, nil
}

// write replaces the file atomically with owner-only permissions.
func (f *File) write(doc *fileDocument) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func machinePassphrase() string {
	host, _ := os.Hostname()
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Uid
	}
	return "tenderdesk:" + host + ":" + name
}
