// Package store keeps the key material of the sigma tools on disk, in TOML.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/drand/sigma/common/log"
	"github.com/drand/sigma/internal/fs"
	"github.com/drand/sigma/sigma/schnorr"
)

// KeyFolderName is the folder under the base folder holding the key pair.
const KeyFolderName = "key"

const (
	keyFileName       = "sigma_id"
	privateExtension  = ".private"
	publicExtension   = ".public"
	defaultBaseFolder = ".sigma"
)

// ErrAbsent is returned when the requested file does not exist.
var ErrAbsent = errors.New("store: can't find requested object")

// ErrMismatch is returned when a stored witness does not open the stored
// instance.
var ErrMismatch = errors.New("store: witness does not match instance")

// Tomler represents any struct that can be (un)marshalled into/from toml format
type Tomler interface {
	TOML() interface{}
	FromTOML(i interface{}) error
	TOMLValue() interface{}
}

// Store abstracts the loading and saving of the witness and of the instance
// it proves.
type Store interface {
	// SaveKeyPair saves the witness with owner-only permissions and the
	// instance next to it.
	SaveKeyPair(w *schnorr.Witness, instance *schnorr.Instance) error
	// LoadKeyPair loads both halves and checks they match.
	LoadKeyPair() (*schnorr.Witness, *schnorr.Instance, error)
	LoadInstance() (*schnorr.Instance, error)
	Folder() string
}

type fileStore struct {
	baseFolder   string
	keyFolder    string
	witnessFile  string
	instanceFile string
	log          log.Logger
}

// NewFileStore returns a Store rooted at baseFolder.
func NewFileStore(baseFolder string, l log.Logger) Store {
	keyFolder := filepath.Join(baseFolder, KeyFolderName)
	return &fileStore{
		baseFolder:   baseFolder,
		keyFolder:    keyFolder,
		witnessFile:  filepath.Join(keyFolder, keyFileName+privateExtension),
		instanceFile: filepath.Join(keyFolder, keyFileName+publicExtension),
		log:          l.Named("store"),
	}
}

// DefaultBaseFolder is the folder used when none is given: ~/.sigma.
func DefaultBaseFolder() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultBaseFolder
	}
	return filepath.Join(home, defaultBaseFolder)
}

func (f *fileStore) Folder() string {
	return f.baseFolder
}

func (f *fileStore) SaveKeyPair(w *schnorr.Witness, instance *schnorr.Instance) error {
	if err := Save(f.witnessFile, w, true); err != nil {
		return err
	}
	f.log.Infow("saved witness", "path", f.witnessFile)
	if err := Save(f.instanceFile, instance, false); err != nil {
		return err
	}
	f.log.Infow("saved instance", "path", f.instanceFile)
	return nil
}

func (f *fileStore) LoadKeyPair() (*schnorr.Witness, *schnorr.Instance, error) {
	w := new(schnorr.Witness)
	if err := Load(f.witnessFile, w); err != nil {
		return nil, nil, err
	}
	instance, err := f.LoadInstance()
	if err != nil {
		return nil, nil, err
	}
	if w.Group.String() != instance.Group.String() {
		return nil, nil, fmt.Errorf("%w: witness in %s, instance in %s", ErrMismatch, w.Group, instance.Group)
	}
	if !instance.Group.Point().Mul(w.Key, instance.Base).Equal(instance.Claim) {
		return nil, nil, ErrMismatch
	}
	return w, instance, nil
}

func (f *fileStore) LoadInstance() (*schnorr.Instance, error) {
	instance := new(schnorr.Instance)
	return instance, Load(f.instanceFile, instance)
}

// Save writes the TOML form of t to path. Secure files are only readable by
// their owner.
func Save(path string, t Tomler, secure bool) error {
	var fd *os.File
	var err error
	if secure {
		fd, err = fs.CreateSecureFile(path)
	} else {
		fd, err = fs.CreatePublicFile(path)
	}
	if err != nil {
		return fmt.Errorf("store: can't save to %s: %w", path, err)
	}
	defer fd.Close()
	return toml.NewEncoder(fd).Encode(t.TOML())
}

// Load decodes the TOML file at path into t.
func Load(path string, t Tomler) error {
	if ok, err := fs.Exists(path); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrAbsent, path)
	}
	tomlValue := t.TOMLValue()
	if _, err := toml.DecodeFile(path, tomlValue); err != nil {
		return fmt.Errorf("store: decoding %s: %w", path, err)
	}
	return t.FromTOML(tomlValue)
}
