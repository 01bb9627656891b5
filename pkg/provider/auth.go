// Package provider is the process-wide filesystem registry of spec.md
// §4.6: it turns a sftp:// URI plus a sftpvfs.Config into a live,
// deduplicated sftpvfs.Filesystem, handling SSH authentication and host
// key verification the way the teacher's sftp_connection.go and the
// rest of the pack's sftp backend (rclone-rclone's backend/sftp) do.
package provider

import (
	"fmt"
	"net"

	sshagent "github.com/xanzy/ssh-agent"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/mossforge/sftpvfs/pkg/sftpvfs"
)

// realDialer satisfies sftpvfs's unexported sshDialer interface
// structurally: Go's assignability rule for interfaces is by method
// set, not by name, so a provider-local type can be passed into
// sftpvfs.NewFilesystem without that package exporting the interface.
type realDialer struct{}

func (realDialer) Dial(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	return ssh.Dial(network, addr, config)
}

// buildClientConfig translates a sftpvfs.Config into the
// golang.org/x/crypto/ssh.ClientConfig the dialer needs, mirroring the
// teacher's Connect (pkg/filesystem/sftp_connection.go): agent-or-keys
// auth methods, a host key callback, and the handful of transport
// knobs spec.md §6 exposes.
func buildClientConfig(cfg sftpvfs.Config) (*ssh.ClientConfig, error) {
	auth, err := buildAuthMethods(cfg)
	if err != nil {
		return nil, err
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH authentication methods configured (password, identities, or identity repository)")
	}

	hostKeyCallback, err := buildHostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.ConnectTimeout,
		ClientVersion:   cfg.ClientVersion,
	}
	for k, v := range cfg.SSHConfig {
		applySSHConfigKey(clientConfig, k, v)
	}
	return clientConfig, nil
}

// buildAuthMethods orders authentication the way rclone's sftp backend
// does: an explicit password first, then configured private keys, then
// whatever an IdentityRepository (typically a live ssh-agent) offers.
func buildAuthMethods(cfg sftpvfs.Config) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}

	for i, pem := range cfg.Identities {
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, errors.Wrapf(err, "parse identity %d", i)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if cfg.IdentityRepository != nil {
		identities, err := cfg.IdentityRepository.Identities()
		if err != nil {
			return nil, errors.Wrap(err, "list identity repository identities")
		}
		var signers []ssh.Signer
		for _, id := range identities {
			signer, ok := id.Signer.(ssh.Signer)
			if !ok {
				continue
			}
			signers = append(signers, signer)
		}
		if len(signers) > 0 {
			methods = append(methods, ssh.PublicKeys(signers...))
		}
	}

	return methods, nil
}

// DefaultAgentIdentityRepository adapts a running ssh-agent into
// sftpvfs.IdentityRepository via github.com/xanzy/ssh-agent, the same
// library the pack's rclone-rclone sftp backend uses to avoid the
// "too many authentication failures" problem of trying every agent key
// against a server with failed-attempt limits.
type DefaultAgentIdentityRepository struct{}

func (DefaultAgentIdentityRepository) Identities() ([]sftpvfs.Identity, error) {
	agentClient, conn, err := sshagent.New()
	if err != nil {
		return nil, errors.Wrap(err, "connect to ssh-agent")
	}
	if conn != nil {
		defer conn.Close()
	}

	signers, err := agentClient.Signers()
	if err != nil {
		return nil, errors.Wrap(err, "list ssh-agent signers")
	}

	out := make([]sftpvfs.Identity, 0, len(signers))
	for _, signer := range signers {
		out = append(out, sftpvfs.Identity{
			Comment: signer.PublicKey().Type(),
			Signer:  signer,
		})
	}
	return out, nil
}

// buildHostKeyCallback adapts cfg.HostKeyCallback (a byte-key shaped
// callback that avoids importing golang.org/x/crypto/ssh from config.go)
// into ssh.HostKeyCallback. A nil callback rejects every host key,
// matching the doc comment on sftpvfs.Config.HostKeyCallback: callers
// must wire in golang.org/x/crypto/ssh/knownhosts explicitly.
func buildHostKeyCallback(cfg sftpvfs.Config) (ssh.HostKeyCallback, error) {
	if cfg.HostKeyCallback == nil {
		return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			return fmt.Errorf("sftpvfs: no HostKeyCallback configured, refusing host key for %s", hostname)
		}, nil
	}
	userCallback := cfg.HostKeyCallback
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		remoteAddr := ""
		if remote != nil {
			remoteAddr = remote.String()
		}
		return userCallback(hostname, remoteAddr, key.Marshal())
	}, nil
}

// applySSHConfigKey carries a handful of per-host SSH config overrides
// through to the transport, matching the "appendedConfig"/"config"
// escape hatch spec.md §6 describes. Only Ciphers is meaningful at the
// golang.org/x/crypto/ssh.ClientConfig level without pulling in a full
// OpenSSH-config parser; other keys are accepted but have no transport
// effect, same treatment OpenOption's ignorable set gets in options.go.
func applySSHConfigKey(cc *ssh.ClientConfig, key, value string) {
	if key == "Ciphers" {
		cc.Config.SetDefaults()
		cc.Config.Ciphers = append(cc.Config.Ciphers, splitComma(value)...)
	}
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
