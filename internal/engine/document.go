package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/can1357/retro/internal/compiler"
	"github.com/can1357/retro/internal/emit"
	"github.com/can1357/retro/internal/literal"
	"github.com/can1357/retro/internal/rules"
)

// ruleExtension is the extension of rendered rule documents.
const ruleExtension = ".cxx"

// output is one rendered file waiting to be committed.
type output struct {
	path string
	data []byte
}

// schema processes one schema document.
func (e *Engine) schema(ctx context.Context, path string) timed {
	start := e.now()
	res := Result{Path: path, Kind: KindSchema, Outputs: e.schemaOutputs(path)}
	done := func(err error) timed {
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
		}
		return timed{Result: res, elapsed: e.now().Sub(start)}
	}

	doc, err := readDocument(path)
	if err != nil {
		return done(err)
	}
	fp, err := literal.Fingerprint(literal.DomainSchema, doc, e.opts.Includes...)
	if err != nil {
		return done(err)
	}
	res.Namespace, err = compiler.NamespaceOf(path, e.opts.IncludeDir, doc)
	if err != nil {
		return done(err)
	}
	if e.fresh(ctx, path, fp, res.Outputs) {
		res.Status = StatusSkipped
		return done(nil)
	}

	s, err := compiler.CompileNamespace(res.Namespace, doc)
	if err != nil {
		return done(err)
	}
	files := make([]output, len(e.generators))
	for i, g := range e.generators {
		data, err := g.Generate(s.Arena, s.Namespace)
		if err != nil {
			return done(fmt.Errorf("%s output: %w", g.Language(), err))
		}
		files[i] = output{path: res.Outputs[i], data: data}
	}

	if err := e.commit(ctx, path, KindSchema, fp, files); err != nil {
		return done(err)
	}
	res.Status = StatusGenerated
	return done(nil)
}

// operatorSet is the compiled operator document shared by every rule
// document of a batch.
type operatorSet struct {
	table       *rules.SymbolTable
	fingerprint string
	err         error
}

// operators compiles the operator document. It is compiled on every batch
// that has rule documents, even when its own outputs are cached.
func (e *Engine) operators() operatorSet {
	path := e.opts.OperatorDocument
	if path == "" {
		return operatorSet{err: errors.New("no operator document configured")}
	}
	table, fp, err := LoadOperators(path, e.opts.IncludeDir, e.opts.OperatorEnum)
	if err != nil {
		return operatorSet{err: fmt.Errorf("operator document %s: %w", path, err)}
	}
	return operatorSet{table: table, fingerprint: fp}
}

// LoadOperators builds the symbol table from the enum named enum in the
// schema document at path, and returns it with the document fingerprint.
func LoadOperators(path, includeDir, enum string) (*rules.SymbolTable, string, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, "", err
	}
	fp, err := literal.Fingerprint(literal.DomainSchema, doc)
	if err != nil {
		return nil, "", err
	}
	ns, err := compiler.NamespaceOf(path, includeDir, doc)
	if err != nil {
		return nil, "", err
	}
	s, err := compiler.CompileNamespace(ns, doc)
	if err != nil {
		return nil, "", err
	}
	table, err := compiler.CompileOperators(s, enum)
	if err != nil {
		return nil, "", err
	}
	return table, fp, nil
}

// rules processes one rule document against the batch's operator table.
func (e *Engine) rules(ctx context.Context, path string, ops operatorSet) timed {
	start := e.now()
	res := Result{Path: path, Kind: KindRules, Outputs: []string{ruleOutput(path)}}
	done := func(err error) timed {
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
		}
		return timed{Result: res, elapsed: e.now().Sub(start)}
	}

	if ops.err != nil {
		return done(ops.err)
	}
	doc, err := readDocument(path)
	if err != nil {
		return done(err)
	}
	fp, err := literal.Fingerprint(literal.DomainRules, doc, ops.fingerprint)
	if err != nil {
		return done(err)
	}
	if e.fresh(ctx, path, fp, res.Outputs) {
		res.Status = StatusSkipped
		return done(nil)
	}

	categories, err := compiler.CompileRules(doc)
	if err != nil {
		return done(err)
	}
	out, err := rules.Generate(ops.table, categories)
	if err != nil {
		return done(err)
	}
	if err := e.commit(ctx, path, KindRules, fp, []output{{path: res.Outputs[0], data: out.Source}}); err != nil {
		return done(err)
	}
	res.Functions = out.Functions
	e.recorder.AddRuleFunctions(out.Functions)
	res.Status = StatusGenerated
	return done(nil)
}

func readDocument(path string) (literal.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return compiler.Decode(path, data)
}

// schemaOutputs returns one output path per generator: beside the document,
// or in ManagedDir for managed output when it is set.
func (e *Engine) schemaOutputs(path string) []string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	out := make([]string, len(e.generators))
	for i, g := range e.generators {
		if _, managed := g.(*emit.Managed); managed && e.opts.ManagedDir != "" {
			out[i] = filepath.Join(e.opts.ManagedDir, compiler.Stem(path)+g.FileExtension())
			continue
		}
		out[i] = base + g.FileExtension()
	}
	return out
}

// ruleOutput returns the output of a rule document: identity.d.yaml ->
// identity.d.cxx.
func ruleOutput(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ruleExtension
}

// fresh reports whether path can be skipped: its cached fingerprint equals
// fp and every output still exists.
func (e *Engine) fresh(ctx context.Context, path, fp string, outputs []string) bool {
	if e.opts.Force {
		return false
	}
	cached, ok, err := e.cache.Lookup(ctx, path)
	if err != nil {
		e.logger.Warn().Err(err).Str("document", path).Msg("cache lookup failed")
		return false
	}
	if !ok || cached != fp {
		return false
	}
	for _, o := range outputs {
		if _, err := os.Stat(o); err != nil {
			return false
		}
	}
	return true
}

// commit writes files and records the document's fingerprint. Every file
// is first written to a temporary sibling; only when all of them are
// written are they moved into place. Replaced outputs are kept aside until
// every move succeeds, so a failed commit restores the previous outputs.
// Dry runs write nothing.
func (e *Engine) commit(ctx context.Context, path string, kind Kind, fp string, files []output) error {
	if e.opts.DryRun {
		return nil
	}

	temps := make([]string, 0, len(files))
	for _, f := range files {
		tmp, err := writeTemp(f)
		if err != nil {
			removeAll(temps)
			return err
		}
		temps = append(temps, tmp)
	}

	var placed []placement
	for i, f := range files {
		p, err := place(temps[i], f.path)
		if err != nil {
			removeAll(temps[i:])
			if rerr := rollback(placed); rerr != nil {
				e.logger.Error().Err(rerr).Str("document", path).Msg("restoring previous outputs failed")
			}
			if ferr := e.cache.Forget(ctx, path); ferr != nil {
				e.logger.Warn().Err(ferr).Str("document", path).Msg("cache forget failed")
			}
			return fmt.Errorf("commit %s: %w", f.path, err)
		}
		placed = append(placed, p)
	}
	for _, p := range placed {
		if p.backup != "" {
			os.Remove(p.backup)
		}
	}

	if err := e.cache.Record(ctx, path, string(kind), fp); err != nil {
		e.logger.Warn().Err(err).Str("document", path).Msg("cache record failed")
	}
	return nil
}

// placement is an output moved into place, with the file it replaced.
type placement struct {
	path   string
	backup string // "" when nothing was replaced
}

// place moves tmp to target, first moving an existing target aside.
func place(tmp, target string) (placement, error) {
	p := placement{path: target}
	if _, err := os.Lstat(target); err == nil {
		bak, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".bak-*")
		if err != nil {
			return p, fmt.Errorf("reserve backup: %w", err)
		}
		bak.Close()
		if err := os.Rename(target, bak.Name()); err != nil {
			os.Remove(bak.Name())
			return p, err
		}
		p.backup = bak.Name()
	}
	if err := os.Rename(tmp, target); err != nil {
		if p.backup != "" {
			os.Rename(p.backup, target)
		}
		return placement{}, err
	}
	return p, nil
}

// rollback undoes placements in reverse order.
func rollback(placed []placement) error {
	var errs []error
	for i := len(placed) - 1; i >= 0; i-- {
		p := placed[i]
		if p.backup == "" {
			if err := os.Remove(p.path); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := os.Rename(p.backup, p.path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

func writeTemp(f output) (string, error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temporary output: %w", err)
	}
	if _, err := tmp.Write(f.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", f.path, err)
	}
	return tmp.Name(), nil
}
