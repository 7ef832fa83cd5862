package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/can1357/retro/internal/config"
	"github.com/can1357/retro/internal/engine"
	"github.com/can1357/retro/internal/logging"
	"github.com/can1357/retro/internal/metrics"
	"github.com/can1357/retro/internal/store"
)

// Error codes for command-level failures. Document failures carry their
// diag code (REFERENCE, RULE_PARSE, ...) or a validation code (E2xx).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No documents found
	ErrCodeConfig      = "E004" // Configuration could not be loaded
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeCache       = "E006" // Fingerprint cache could not be opened
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadError represents an error that occurred before any document was
// processed.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// sessionOptions are per-command engine settings.
type sessionOptions struct {
	DryRun bool
	Force  bool
}

// session is a configured engine together with everything it writes to.
type session struct {
	cfg     *config.Config
	cfgFile string // absolute; never treated as a document
	root    string
	logger  zerolog.Logger
	metrics *metrics.Collector
	store   *store.Store // nil when no cache file is configured
	engine  *engine.Engine
}

// loadConfig loads the file named by --config, or tablegen.yaml when it
// exists in the working directory. It also returns the absolute path of
// the file it read, or "" when the defaults were used.
func loadConfig(opts *RootOptions) (*config.Config, string, error) {
	path := opts.Config
	if path == "" {
		path = config.DefaultFile
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", &LoadError{Code: ErrCodeConfig, Message: fmt.Sprintf("loading %s", path), Err: err}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", &LoadError{Code: ErrCodeConfig, Message: fmt.Sprintf("resolving %s", path), Err: err}
	}
	return cfg, abs, nil
}

// openSession builds an engine from configuration. Flags override the
// configuration file: rootArg, then --root, then the file's root. Logs go
// to logOut.
func openSession(opts *RootOptions, rootArg string, so sessionOptions, logOut io.Writer) (*session, error) {
	cfg, cfgFile, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	root := cfg.Root
	if opts.Root != "" {
		root = opts.Root
	}
	if rootArg != "" {
		root = rootArg
	}
	if err := checkDir(root); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Logging, logOut)
	if opts.Verbose && logger.GetLevel() > zerolog.DebugLevel && logger.GetLevel() != zerolog.Disabled {
		logger = logger.Level(zerolog.DebugLevel)
	}

	s := &session{
		cfg:     cfg,
		cfgFile: cfgFile,
		root:    root,
		logger:  logger,
		metrics: metrics.New(),
	}

	engineOpts := []engine.Option{engine.WithRecorder(s.metrics)}
	if cfg.Cache.Path != "" && !so.DryRun {
		if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
			return nil, &LoadError{Code: ErrCodeCache, Message: "creating cache directory", Err: err}
		}
		st, err := store.Open(cfg.Cache.Path, Version)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeCache, Message: fmt.Sprintf("opening cache %s", cfg.Cache.Path), Err: err}
		}
		if st.Invalidated() {
			logger.Info().Str("cache", cfg.Cache.Path).Str("version", Version).Msg("generator version changed, cache discarded")
		}
		s.store = st
		engineOpts = append(engineOpts, engine.WithCache(st), engine.WithRunLog(st))
	}

	operators := cfg.Operators.Document
	if opts.Operators != "" {
		operators = opts.Operators
	}

	s.engine = engine.New(engine.Options{
		IncludeDir:       cfg.IncludeDir,
		ManagedDir:       cfg.ManagedDir,
		OperatorDocument: operators,
		OperatorEnum:     cfg.Operators.Enum,
		Includes:         cfg.Native.Includes,
		DryRun:           so.DryRun,
		Force:            so.Force,
	}, logger, engineOpts...)

	return s, nil
}

// batch discovers the documents under the root and runs them. The metrics
// textfile, when configured, is rewritten after every batch.
func (s *session) batch(ctx context.Context) (engine.Summary, error) {
	found, err := engine.Discover(s.root)
	if err != nil {
		return engine.Summary{}, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("scanning %s", s.root), Err: err}
	}
	paths := found[:0]
	for _, p := range found {
		if abs, err := filepath.Abs(p); err == nil && abs == s.cfgFile {
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return engine.Summary{}, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no documents found in %s", s.root)}
	}

	sum, err := s.engine.Run(ctx, paths)
	if err != nil {
		return sum, err
	}

	if s.cfg.Metrics.File != "" {
		if err := s.metrics.WriteTextfile(s.cfg.Metrics.File); err != nil {
			return sum, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing metrics to %s", s.cfg.Metrics.File), Err: err}
		}
	}
	return sum, nil
}

// Close releases the cache.
func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("document root not found: %s", dir)}
	}
	if err != nil {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing document root: %v", err)}
	}
	if !info.IsDir() {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}
	return nil
}
