// Package entropy builds the random streams drawing witnesses and nonces,
// optionally mixing in a user provided source.
package entropy

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/drand/kyber/util/random"
	"github.com/drand/kyber/xof/blake2xb"

	"github.com/drand/sigma/common/log"
)

// NewFileReader creates a reader that reads random bytes directly from a file
func NewFileReader(filePath string) io.Reader {
	return &fileReader{
		path: filePath,
	}
}

type fileReader struct {
	path string
}

func (r *fileReader) Read(p []byte) (n int, err error) {
	file, err := os.Open(r.path)
	if err != nil {
		return 0, fmt.Errorf("entropy: cannot open file: %w", err)
	}
	defer file.Close()

	n, err = io.ReadFull(file, p)
	if err != nil {
		return n, fmt.Errorf("entropy: error reading from file: %w", err)
	}
	return n, nil
}

// GetReaderFromSource creates a reader for the provided file path
func GetReaderFromSource(sourcePath string, logger log.Logger) (io.Reader, error) {
	fileInfo, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("entropy: cannot access source: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, errors.New("entropy: source path is a directory, not a file")
	}
	logger.Infow("Using file for entropy source", "source", sourcePath)
	return NewFileReader(sourcePath), nil
}

// minSeedSize is the least amount of user entropy accepted alone.
const minSeedSize = 32

// NewStream returns the stream of the prover. Without a source it reads
// crypto/rand. A source is hashed together with crypto/rand on every draw.
// When userOnly is set, the whole source seeds an extendable output function
// instead, which makes runs reproducible without repeating nonces.
func NewStream(sourcePath string, userOnly bool, logger log.Logger) (cipher.Stream, error) {
	if sourcePath == "" {
		if userOnly {
			return nil, errors.New("entropy: user only randomness without a source")
		}
		return random.New(), nil
	}
	source, err := GetReaderFromSource(sourcePath, logger)
	if err != nil {
		return nil, err
	}
	if !userOnly {
		return random.New(source, rand.Reader), nil
	}
	seed, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("entropy: reading source: %w", err)
	}
	if len(seed) < minSeedSize {
		return nil, fmt.Errorf("entropy: source holds %d bytes, at least %d are needed", len(seed), minSeedSize)
	}
	logger.Warnw("Randomness only comes from the user source", "source", sourcePath)
	return blake2xb.New(seed), nil
}
