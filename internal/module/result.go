package module

import (
	"encoding/json"
	"fmt"
	"io"
)

const (
	// KeyVirtup is the keys entry holding the engine-managed private key path.
	KeyVirtup = "virtup"
	// KeyMolecule is the keys entry holding where Molecule keeps its copy.
	KeyMolecule = "molecule"
)

// Result is the module's return value.
type Result struct {
	Changed bool              `json:"changed" yaml:"changed"`
	Keys    map[string]string `json:"keys,omitempty" yaml:"keys,omitempty"`
	Server  *Server           `json:"server,omitempty" yaml:"server,omitempty"`
}

// Server is the Molecule instance configuration of one instance.
type Server struct {
	Instance     string `json:"instance" yaml:"instance"`
	Address      string `json:"address" yaml:"address"`
	User         string `json:"user" yaml:"user"`
	Port         string `json:"port" yaml:"port"`
	IdentityFile string `json:"identity_file" yaml:"identity_file"`
}

// failure is the JSON a binary module prints when it fails.
type failure struct {
	Failed  bool   `json:"failed"`
	Changed bool   `json:"changed"`
	Msg     string `json:"msg"`
}

// ExitJSON writes r as the module's JSON output.
func ExitJSON(w io.Writer, r *Result) error {
	if err := json.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("failed to write module result: %w", err)
	}
	return nil
}

// FailJSON writes err as a failed module result.
func FailJSON(w io.Writer, err error) error {
	if encErr := json.NewEncoder(w).Encode(failure{Failed: true, Msg: err.Error()}); encErr != nil {
		return fmt.Errorf("failed to write module failure: %w", encErr)
	}
	return nil
}
