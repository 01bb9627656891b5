// Package main is the entry point for the sftpvfs-ls demonstrator: a
// thin CLI that lists a remote directory through pkg/provider and
// pkg/sftpvfs, the way the teacher's copy-files command exercises
// pkg/filesystem.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alexflint/go-arg"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	cliErrors "github.com/mossforge/sftpvfs/pkg/errors"
	"github.com/mossforge/sftpvfs/pkg/provider"
	"github.com/mossforge/sftpvfs/pkg/sftpvfs"
	"github.com/mossforge/sftpvfs/pkg/vfspath"

	_ "go.uber.org/automaxprocs"
)

// args mirrors the teacher's internal/config.Config struct-tag
// convention (arg:"-x,--long" help:"...") rather than hand-rolling flag
// parsing with the standard library's flag package.
type args struct {
	URI            string        `arg:"positional,required" help:"sftp://user@host[:port]/path to list"`
	Password       bool          `arg:"-p,--password" help:"prompt for a password on stderr instead of using an agent or key"`
	IdentityFile   string        `arg:"-i,--identity" help:"path to a private key file"`
	KnownHostsFile string        `arg:"--known-hosts" help:"path to a known_hosts file; without it every host key is rejected"`
	ConnectTimeout time.Duration `arg:"--connect-timeout" default:"10s" help:"SSH dial timeout"`
	Long           bool          `arg:"-l,--long" help:"show size, permissions and modification time"`
}

func (args) Description() string {
	return "List a remote directory over SFTP using sftpvfs."
}

func main() {
	var cfg args
	arg.MustParse(&cfg)

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "sftpvfs-ls: %v\n", err)
		os.Exit(1)
	}
}

func run(cliArgs args) error {
	fsConfig := sftpvfs.Config{
		ConnectTimeout: cliArgs.ConnectTimeout,
	}

	if cliArgs.Password {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fsConfig.Password = string(pw)
	}

	if cliArgs.IdentityFile != "" {
		key, err := os.ReadFile(cliArgs.IdentityFile)
		if err != nil {
			return fmt.Errorf("read identity file: %w", err)
		}
		fsConfig.Identities = append(fsConfig.Identities, key)
	} else if !cliArgs.Password {
		fsConfig.IdentityRepository = provider.DefaultAgentIdentityRepository{}
	}

	if cliArgs.KnownHostsFile != "" {
		callback, err := knownhosts.New(cliArgs.KnownHostsFile)
		if err != nil {
			return fmt.Errorf("load known_hosts: %w", err)
		}
		fsConfig.HostKeyCallback = adaptKnownHosts(callback)
	}

	registry := provider.NewRegistry(nil)
	defer registry.CloseAll() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), cliArgs.ConnectTimeout+30*time.Second)
	defer cancel()

	fs, err := registry.Create(ctx, cliArgs.URI, fsConfig)
	if err != nil {
		return enrichedErr(err, cliArgs.URI)
	}

	parsed, err := provider.ParseURI(cliArgs.URI)
	if err != nil {
		return err
	}
	remotePath := vfspath.Parse(parsed.Path)

	stream, err := fs.NewDirectoryStream(ctx, remotePath.String(), nil)
	if err != nil {
		return enrichedErr(err, remotePath.String())
	}
	defer stream.Close() //nolint:errcheck

	return printEntries(os.Stdout, stream, cliArgs.Long)
}

// enrichedErr wraps err with the category-specific suggestions of
// errors.Enricher (adapted from the teacher's pkg/errors to cover SSH
// auth and connection failures, see pkg/errors/matcher.go), so failures
// surface with remediation steps instead of a bare wrapped message.
func enrichedErr(err error, path string) error {
	actionable := cliErrors.NewEnricher().Enrich(err, path)
	return fmt.Errorf("%s\n%s", actionable.Error(), cliErrors.FormatSuggestions(actionable))
}

func printEntries(w *os.File, stream *sftpvfs.DirectoryStream, long bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush() //nolint:errcheck

	for {
		entry, ok := stream.Next()
		if !ok {
			break
		}
		if !long {
			fmt.Fprintln(tw, entry.Name)
			continue
		}
		kind := "-"
		if entry.Attributes.IsDirectory() {
			kind = "d"
		} else if entry.Attributes.IsSymlink() {
			kind = "l"
		}
		fmt.Fprintf(tw, "%s%s\t%d\t%s\t%s\n",
			kind, entry.Attributes.Permissions, entry.Attributes.Size,
			entry.Attributes.ModTime.Format(time.RFC3339), entry.Name)
	}
	return nil
}

// adaptKnownHosts bridges x/crypto/ssh/knownhosts' ssh.HostKeyCallback
// (which needs the ssh.PublicKey type and a net.Addr) into sftpvfs.Config's
// byte-key-shaped HostKeyCallback, the same marshal-and-reparse seam
// pkg/provider's auth.go uses in the other direction. The remote address
// knownhosts receives is synthesized from the hostname string sftpvfs
// hands back, since the byte-key-shaped callback doesn't carry the
// original net.Addr through - "host,ip" entries in known_hosts won't
// match on IP alone, hostname entries still will.
func adaptKnownHosts(callback ssh.HostKeyCallback) sftpvfs.HostKeyCallback {
	return func(hostname string, remote string, key []byte) error {
		pubKey, err := ssh.ParsePublicKey(key)
		if err != nil {
			return err
		}
		return callback(hostname, fakeAddr(remote), pubKey)
	}
}

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

var _ net.Addr = fakeAddr("")
