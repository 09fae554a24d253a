package sigmacli

import (
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/nikkolasg/hexjson"

	"github.com/drand/sigma/common"
	"github.com/drand/sigma/internal/fs"
	"github.com/drand/sigma/nizk"
)

// ProofFile is the JSON document written by the prove command. Byte fields
// are hex encoded.
type ProofFile struct {
	Version string `json:"version"`
	Kind    string `json:"kind"`
	Group   string `json:"group"`
	Hash    string `json:"hash"`
	Context []byte `json:"context"`
	// HasMessage tells an absent message from an empty one.
	HasMessage bool   `json:"has_message"`
	Message    []byte `json:"message,omitempty"`
	Proof      []byte `json:"proof"`
}

// message returns the bound message, nil when absent.
func (p *ProofFile) message() []byte {
	if !p.HasMessage {
		return nil
	}
	if p.Message == nil {
		return []byte{}
	}
	return p.Message
}

func (p *ProofFile) validate() error {
	v, err := common.ParseVersion(p.Version)
	if err != nil {
		return err
	}
	if !common.GetAppVersion().IsCompatible(v) {
		return fmt.Errorf("proof file version %s can't be read by version %s", v, common.GetAppVersion())
	}
	switch p.Kind {
	case nizk.KindBatchable, nizk.KindShort:
	default:
		return fmt.Errorf("unknown proof kind %q", p.Kind)
	}
	if len(p.Proof) == 0 {
		return errors.New("proof file without proof")
	}
	return nil
}

func writeProofFile(w io.Writer, p *ProofFile) error {
	buff, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return err
	}
	buff = append(buff, '\n')
	_, err = w.Write(buff)
	return err
}

func saveProofFile(path string, p *ProofFile) error {
	fd, err := fs.CreatePublicFile(path)
	if err != nil {
		return err
	}
	defer fd.Close()
	return writeProofFile(fd, p)
}

func loadProofFile(path string) (*ProofFile, error) {
	buff, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := new(ProofFile)
	if err := json.Unmarshal(buff, p); err != nil {
		return nil, fmt.Errorf("proof file %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("proof file %s: %w", path, err)
	}
	return p, nil
}
