package virtup

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ensureKeyPair returns the authorized_keys line for the key pair at
// privPath, generating an ed25519 pair when none exists yet.
func ensureKeyPair(privPath, comment string) (string, error) {
	pubPath := privPath + ".pub"

	pub, err := os.ReadFile(pubPath)
	if err == nil {
		if _, _, _, _, err := ssh.ParseAuthorizedKey(pub); err != nil {
			return "", fmt.Errorf("invalid public key %s: %w", pubPath, err)
		}
		return strings.TrimSpace(string(pub)), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to read public key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(privPath), 0o700); err != nil {
		return "", fmt.Errorf("failed to create key directory: %w", err)
	}

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(private, comment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(public)
	if err != nil {
		return "", fmt.Errorf("failed to create SSH public key: %w", err)
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " " + comment

	if err := os.WriteFile(privPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return "", fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, []byte(line+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write public key: %w", err)
	}

	return line, nil
}
