// Package keypair creates EC2 SSH key pairs and persists the private key
// material locally. The provider generates the key; the material appears
// exactly once in the CreateKeyPair response, so the write has to succeed
// before the deploy can proceed.
package keypair

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"golang.org/x/crypto/ssh"

	ollamaaws "github.com/ollamastack/ollamastack/internal/aws"
)

// KeyPair records where a created key pair lives. The private key material
// itself is written to Path and not retained.
type KeyPair struct {
	Name string
	Path string
}

// Provisioner requests key pairs from EC2 and saves them to disk.
type Provisioner struct {
	client ollamaaws.CreateKeyPairAPI
}

// NewProvisioner creates a Provisioner with the given EC2 client.
func NewProvisioner(client ollamaaws.CreateKeyPairAPI) *Provisioner {
	return &Provisioner{client: client}
}

// Create requests a new key pair named name and writes the private key to
// {dir}/{name}.pem. The file is owner-read-only before Create returns, as
// ssh refuses keys with looser permissions. Any provider error is returned
// as-is for the caller to treat as fatal.
func (p *Provisioner) Create(ctx context.Context, name, dir string) (*KeyPair, error) {
	out, err := p.client.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
		KeyName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("ec2 create-key-pair %q: %w", name, err)
	}

	material := aws.ToString(out.KeyMaterial)
	if material == "" {
		return nil, fmt.Errorf("ec2 create-key-pair %q returned empty key material", name)
	}

	// Sanity-check the PEM before writing a broken key to disk.
	if _, err := ssh.ParseRawPrivateKey([]byte(material)); err != nil {
		return nil, fmt.Errorf("key material for %q is not a valid private key: %w", name, err)
	}

	path := filepath.Join(dir, name+".pem")
	if err := os.WriteFile(path, []byte(material), 0o600); err != nil {
		return nil, fmt.Errorf("write private key %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o400); err != nil {
		return nil, fmt.Errorf("chmod private key %s: %w", path, err)
	}

	return &KeyPair{Name: name, Path: path}, nil
}

// GenerateName derives a key pair name from the stack name and the current
// hour: {stack}-{YYYYMMDDHH}-keypair. Names collide only when the same stack
// is provisioned twice within one hour, in which case the provider rejects
// the duplicate.
func GenerateName(stackName string, now time.Time) string {
	return fmt.Sprintf("%s-%s-keypair", stackName, now.Format("2006010215"))
}
