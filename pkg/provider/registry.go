package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mossforge/sftpvfs/pkg/sftpvfs"
)

// Sentinel errors for the registry's create/get contract (spec.md
// §4.6): AlreadyExists on a duplicate create, NotFound on a get/close of
// an identity nobody opened.
var (
	ErrAlreadyExists    = errors.New("provider: a filesystem for this identity is already open")
	ErrNotFound         = errors.New("provider: no filesystem open for this identity")
	ErrPasswordInURI    = errors.New("provider: password may not appear in a URI passed to Create")
	ErrQueryInGetURI    = errors.New("provider: query parameters may not appear in a URI passed to Get")
	ErrPathInGetURI     = errors.New("provider: a path may not appear in a URI passed to Get")
	ErrPasswordInGetURI = errors.New("provider: password may not appear in a URI passed to Get")
)

// Registry is the single process-wide provider of spec.md §4.6: a
// mutex-protected map from normalized identity to live Filesystem, plus
// an atomically-swappable default Config consulted by GetPath's lazy
// creation path. It generalizes the single-instance-per-identity
// invariant the teacher's SFTPClientPool enforces per-connection into a
// process-wide per-server-identity invariant.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*sftpvfs.Filesystem

	defaultConfig atomic.Pointer[sftpvfs.Config]
	log           logrus.FieldLogger
}

// NewRegistry returns an empty registry. log may be nil (defaults to
// logrus's standard logger, same convention as sftpvfs.NewFilesystem).
func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{instances: make(map[string]*sftpvfs.Filesystem), log: log}
}

// SetDefaultConfig installs the configuration GetPath falls back to
// when it lazily creates a filesystem, per spec.md §4.6 "reading
// configuration from a process-wide default plus URI query parameters".
func (r *Registry) SetDefaultConfig(cfg sftpvfs.Config) {
	r.defaultConfig.Store(&cfg)
}

// Create opens a new filesystem for rawURI's identity, failing with
// ErrAlreadyExists if one is already open. The URI may not carry a
// password (spec.md §4.6: "no password-in-URI for the named-lookup
// entry point"); supply it via cfg.Password instead.
func (r *Registry) Create(ctx context.Context, rawURI string, cfg sftpvfs.Config) (*sftpvfs.Filesystem, error) {
	parsed, err := ParseURI(rawURI)
	if err != nil {
		return nil, err
	}
	if parsed.Password != "" {
		return nil, ErrPasswordInURI
	}
	return r.create(ctx, parsed, cfg)
}

// GetPath returns the filesystem for uri's identity, lazily creating it
// from the registry's default Config merged with uri's query parameters
// when nothing is open yet for that identity (spec.md §4.6's second
// entry point), plus the URI's remote path (relative to the login's
// home directory unless it used the doubled-slash absolute-path
// convention - see normalizeRemotePath). Unlike Create, a password in
// the URI's userinfo is accepted here and merged into the config used
// for creation. Callers resolve the returned path against the
// filesystem with vfspath.Parse.
func (r *Registry) GetPath(ctx context.Context, rawURI string) (*sftpvfs.Filesystem, string, error) {
	parsed, err := ParseURI(rawURI)
	if err != nil {
		return nil, "", err
	}

	if fs, ok := r.lookup(parsed.Identity); ok {
		return fs, parsed.Path, nil
	}

	base := sftpvfs.Config{Username: parsed.Identity.User}
	if defaults := r.defaultConfig.Load(); defaults != nil {
		base = *defaults
		base.Username = parsed.Identity.User
	}
	if parsed.Password != "" {
		base.Password = parsed.Password
	}

	merged, err := base.ParseQuery(parsed.Query)
	if err != nil {
		return nil, "", err
	}
	if merged.DefaultDir == "" {
		merged.DefaultDir = parsed.Path
	}

	fs, err := r.create(ctx, parsed, merged)
	if err != nil {
		return nil, "", err
	}
	return fs, parsed.Path, nil
}

func (r *Registry) create(ctx context.Context, parsed ParsedURI, cfg sftpvfs.Config) (*sftpvfs.Filesystem, error) {
	identityKey := parsed.Identity.String()

	r.mu.Lock()
	if _, exists := r.instances[identityKey]; exists {
		r.mu.Unlock()
		return nil, ErrAlreadyExists
	}
	r.mu.Unlock()

	if cfg.Username == "" {
		cfg.Username = parsed.Identity.User
	}
	if cfg.DefaultDir == "" {
		cfg.DefaultDir = parsed.Path
	}

	sshConfig, err := buildClientConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "build SSH client config")
	}

	rootURI := fmt.Sprintf("sftp://%s@%s", parsed.Identity.User, parsed.Identity.Addr())
	fs, err := sftpvfs.NewFilesystem(ctx, uuid.NewString(), identityKey, rootURI, cfg, realDialer{}, parsed.Identity.Addr(), sshConfig, r.log)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.instances[identityKey]; exists {
		r.mu.Unlock()
		_ = fs.Close()
		return nil, ErrAlreadyExists
	}
	r.instances[identityKey] = fs
	r.mu.Unlock()

	return fs, nil
}

// Get returns the already-open filesystem for rawURI's identity
// (spec.md §6 "get-existing"). rawURI identifies a filesystem, it does
// not navigate one: a query string, a fragment (rejected by ParseURI
// itself), or a path beyond the bare root is rejected, and so is a
// password, since Get never dials a new connection and has no use for
// one. Bare userinfo (sftp://user@host[:port]) is the only thing this
// entry point accepts.
func (r *Registry) Get(rawURI string) (*sftpvfs.Filesystem, error) {
	parsed, err := ParseURI(rawURI)
	if err != nil {
		return nil, err
	}
	if len(parsed.Query) != 0 {
		return nil, ErrQueryInGetURI
	}
	if parsed.Path != "." {
		return nil, ErrPathInGetURI
	}
	if parsed.Password != "" {
		return nil, ErrPasswordInGetURI
	}

	fs, ok := r.lookup(parsed.Identity)
	if !ok {
		return nil, ErrNotFound
	}
	return fs, nil
}

func (r *Registry) lookup(id Identity) (*sftpvfs.Filesystem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs, ok := r.instances[id.String()]
	return fs, ok
}

// Close removes identity from the registry before disconnecting its
// pool, per spec.md §4.6 ("so that a concurrent create may succeed"):
// the map entry is gone before Filesystem.Close's (slower) pool
// teardown even starts.
func (r *Registry) Close(identity string) error {
	r.mu.Lock()
	fs, ok := r.instances[identity]
	if ok {
		delete(r.instances, identity)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return fs.Close()
}

// CloseAll tears down every open filesystem, for process shutdown.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	instances := r.instances
	r.instances = make(map[string]*sftpvfs.Filesystem)
	r.mu.Unlock()

	var firstErr error
	for _, fs := range instances {
		if err := fs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
