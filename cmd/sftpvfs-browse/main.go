// Package main is the entry point for the sftpvfs-browse demonstrator:
// a minimal, read-only bubbletea TUI that walks a remote directory tree
// over sftpvfs, restyled from the teacher's internal/tui package (whose
// Model/Update/View shape and lipgloss palette it reuses) around
// browsing instead of a sync plan.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alexflint/go-arg"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	cliErrors "github.com/mossforge/sftpvfs/pkg/errors"
	"github.com/mossforge/sftpvfs/pkg/provider"
	"github.com/mossforge/sftpvfs/pkg/sftpvfs"
	"github.com/mossforge/sftpvfs/pkg/vfspath"

	_ "go.uber.org/automaxprocs"
)

type args struct {
	URI            string        `arg:"positional,required" help:"sftp://user@host[:port]/path to browse"`
	Password       bool          `arg:"-p,--password" help:"prompt for a password on stderr instead of using an agent or key"`
	ConnectTimeout time.Duration `arg:"--connect-timeout" default:"10s" help:"SSH dial timeout"`
}

func (args) Description() string {
	return "Browse a remote directory tree read-only over SFTP."
}

func main() {
	var cliArgs args
	arg.MustParse(&cliArgs)

	fsConfig := sftpvfs.Config{ConnectTimeout: cliArgs.ConnectTimeout}
	if cliArgs.Password {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sftpvfs-browse: %v\n", err)
			os.Exit(1)
		}
		fsConfig.Password = string(pw)
	} else {
		fsConfig.IdentityRepository = provider.DefaultAgentIdentityRepository{}
	}

	registry := provider.NewRegistry(nil)
	defer registry.CloseAll() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), cliArgs.ConnectTimeout+30*time.Second)
	defer cancel()

	fs, err := registry.Create(ctx, cliArgs.URI, fsConfig)
	if err != nil {
		actionable := cliErrors.NewEnricher().Enrich(err, cliArgs.URI)
		fmt.Fprintf(os.Stderr, "sftpvfs-browse: %s\n%s\n", actionable.Error(), cliErrors.FormatSuggestions(actionable))
		os.Exit(1)
	}

	parsed, err := provider.ParseURI(cliArgs.URI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sftpvfs-browse: %v\n", err)
		os.Exit(1)
	}

	model := newBrowseModel(fs, vfspath.Parse(parsed.Path))

	var opts []tea.ProgramOption
	if term.IsTerminal(int(os.Stdout.Fd())) {
		opts = append(opts, tea.WithAltScreen())
	}

	if _, err := tea.NewProgram(model, opts...).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "sftpvfs-browse: %v\n", err)
		os.Exit(1)
	}
}
