// Package parser loads Go packages and generates the builder file of every
// package with annotated declarations.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"
	"golang.org/x/tools/go/packages"

	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/input"
	"github.com/cmmoran/buildergen/internal/render"
	opts "github.com/cmmoran/buildergen/pkg/parser"
)

// Header is the first line of every generated file.
const Header = "Code generated by buildergen. DO NOT EDIT."

// MinGoVersion is the first Go release with type parameters.
const MinGoVersion = "1.18"

// File is one generated file.
type File struct {
	Package  string
	PkgPath  string
	Path     string
	Builders []string
	Source   []byte
}

// Parser holds state/results of a parse run.
type Parser struct {
	Opts opts.Options

	// Files are the files generated by the last Parse, sorted by path.
	Files []*File
	// Orphans are generated files on disk whose package no longer declares
	// any builder for them.
	Orphans []string

	goVersions map[string]string // go.mod path → go directive
	pkgNames   map[string]string // import path → declared package name
}

// New executes the parser with options.
func New(options ...opts.Option) (*Parser, error) {
	o := opts.NewOptions()
	for _, fn := range options {
		fn(o)
	}

	return NewWithOpts(o)
}

func NewWithOpts(o *opts.Options) (*Parser, error) {
	o.Normalize()
	if err := o.ValidateExclude(); err != nil {
		return nil, err
	}

	p := &Parser{
		Opts:       *o,
		goVersions: make(map[string]string),
		pkgNames:   make(map[string]string),
	}

	return p, nil
}

// output groups the annotated files of a package that share a generated file.
type output struct {
	name  string
	files []*ast.File
}

// Parse loads the packages matching patterns and generates their builder
// files. Diagnostics of all packages are joined and sorted by position. A
// package with any failing declaration produces no file.
func (p *Parser) Parse(ctx context.Context, patterns ...string) ([]*File, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	p.Files = nil
	p.Orphans = nil

	fset := token.NewFileSet()
	cfg := &packages.Config{
		Context:    ctx,
		Mode:       packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedSyntax | packages.NeedModule,
		Dir:        p.Opts.InDir,
		Fset:       fset,
		Tests:      p.Opts.Tests,
		BuildFlags: p.buildFlags(),
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	slog.Default().With("patterns", patterns, "count", len(pkgs)).Debug("loaded packages")

	var errs []error
	for _, pkg := range p.variants(pkgs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(pkg.Errors) > 0 {
			var perrs []error
			for _, e := range pkg.Errors {
				perrs = append(perrs, e)
			}
			errs = append(errs, fmt.Errorf("load %s: %w", pkg.PkgPath, errors.Join(perrs...)))
			continue
		}
		files, err := p.parsePackage(ctx, pkg, fset)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.Files = append(p.Files, files...)
	}

	sort.Slice(p.Files, func(i, j int) bool { return p.Files[i].Path < p.Files[j].Path })
	sort.Strings(p.Orphans)
	if len(errs) > 0 {
		return p.Files, errors.Join(diag.Sort(diag.WithFileSet(errors.Join(errs...), fset))...)
	}
	return p.Files, nil
}

// variants drops test binaries and, when a test variant of a package was
// loaded, the package itself: the variant has every file of it.
func (p *Parser) variants(pkgs []*packages.Package) []*packages.Package {
	tested := map[string]bool{}
	for _, pkg := range pkgs {
		if pkg.ID != pkg.PkgPath && !strings.HasSuffix(pkg.PkgPath, "_test") {
			tested[pkg.PkgPath] = true
		}
	}
	var out []*packages.Package
	for _, pkg := range pkgs {
		switch {
		case strings.HasSuffix(pkg.PkgPath, ".test"):
		case pkg.ID == pkg.PkgPath && tested[pkg.PkgPath]:
		default:
			out = append(out, pkg)
		}
	}
	return out
}

func (p *Parser) parsePackage(ctx context.Context, pkg *packages.Package, fset *token.FileSet) ([]*File, error) {
	var (
		source  []*ast.File
		outputs = map[string]*output{}
		order   []string
		dir     string
	)
	for _, file := range pkg.Syntax {
		name := fset.Position(file.Package).Filename
		if dir == "" {
			dir = filepath.Dir(name)
		}
		if own := isOwnOutput(file); own || p.Opts.IsOutput(name) {
			if own {
				p.Orphans = append(p.Orphans, name)
			}
			continue
		}
		source = append(source, file)
		if ast.IsGenerated(file) || p.Opts.Excluded(name) {
			continue
		}
		out := p.outputFor(pkg, name)
		if _, ok := outputs[out]; !ok {
			outputs[out] = &output{name: out}
			order = append(order, out)
		}
		outputs[out].files = append(outputs[out].files, file)
	}
	if dir == "" {
		return nil, nil
	}

	if err := p.checkGoVersion(pkg, dir); err != nil {
		return nil, err
	}

	types, scope := input.Collect(source)

	var annotated []*ast.File
	for _, name := range order {
		annotated = append(annotated, outputs[name].files...)
	}
	names := p.packageNames(ctx, dir, annotated)

	var (
		files []*File
		errs  []error
	)
	for _, name := range order {
		out := outputs[name]
		f, err := p.render(pkg, fset, out, names, &input.Env{
			PkgPath: pkg.PkgPath,
			Fset:    fset,
			Types:   types,
			Scope:   scope,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if f == nil {
			continue
		}
		f.Path = filepath.Join(dir, out.name)
		files = append(files, f)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	kept := p.Orphans[:0]
	for _, o := range p.Orphans {
		if !containsPath(files, o) {
			kept = append(kept, o)
		}
	}
	p.Orphans = kept

	slog.Default().With("package", pkg.PkgPath, "files", len(files)).Debug("parsed package")
	return files, nil
}

func (p *Parser) outputFor(pkg *packages.Package, filename string) string {
	switch {
	case !strings.HasSuffix(filename, "_test.go"):
		return p.Opts.OutFile
	case strings.HasSuffix(pkg.Name, "_test"):
		return p.Opts.ExternalTestOutFile()
	default:
		return p.Opts.TestOutFile()
	}
}

// render runs every annotated declaration of out. It returns nil when none
// of the files declares a builder.
func (p *Parser) render(pkg *packages.Package, fset *token.FileSet, out *output, names map[string]string, base *input.Env) (*File, error) {
	f := jen.NewFilePathName(pkg.PkgPath, pkg.Name)
	f.HeaderComment(Header)
	imports := render.NewImports()

	var (
		builders []string
		errs     []error
	)
	for _, file := range out.files {
		env := *base
		env.Renderer = render.NewRenderer(file, imports, names)

		adapters, err := input.Annotated(file, &env)
		if err != nil {
			errs = append(errs, err)
		}
		for _, a := range adapters {
			c, err := input.Build(a, &env)
			if err == nil {
				err = c.Emit(f)
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			builders = append(builders, c.Names().Builder)
			slog.Default().With("package", pkg.PkgPath, "builder", c.Names().Builder, "subject", c.Subject.String()).Log(context.Background(), slog.Level(-8), "generated builder")
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(builders) == 0 {
		return nil, nil
	}
	imports.Register(f)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", out.name, err)
	}
	return &File{
		Package:  pkg.Name,
		PkgPath:  pkg.PkgPath,
		Builders: builders,
		Source:   buf.Bytes(),
	}, nil
}

func (p *Parser) buildFlags() []string {
	if len(p.Opts.Tags) == 0 {
		return nil
	}
	return []string{"-tags=" + strings.Join(p.Opts.Tags, ",")}
}

// packageNames resolves the names declared by the packages files import. An
// import path can differ from its package name, as k8s.io/api/core/v1 does
// for package v1. Paths that fail to load are left to the renderer's guess.
func (p *Parser) packageNames(ctx context.Context, dir string, files []*ast.File) map[string]string {
	var missing []string
	for _, path := range render.ImportPaths(files...) {
		if _, ok := p.pkgNames[path]; !ok && path != "C" {
			missing = append(missing, path)
		}
	}
	if len(missing) == 0 {
		return p.pkgNames
	}

	pkgs, err := packages.Load(&packages.Config{
		Context:    ctx,
		Mode:       packages.NeedName,
		Dir:        dir,
		BuildFlags: p.buildFlags(),
	}, missing...)
	if err != nil {
		slog.Default().With("dir", dir, "error", err).Debug("resolve package names")
	}
	for _, pkg := range pkgs {
		if pkg.Name != "" {
			p.pkgNames[pkg.PkgPath] = pkg.Name
		}
	}
	for _, path := range missing {
		if _, ok := p.pkgNames[path]; !ok {
			p.pkgNames[path] = ""
		}
	}
	return p.pkgNames
}

func isOwnOutput(file *ast.File) bool {
	if len(file.Comments) == 0 || file.Comments[0].Pos() > file.Package {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(file.Comments[0].List[0].Text, "//")) == Header
}

func containsPath(files []*File, path string) bool {
	for _, f := range files {
		if f.Path == path {
			return true
		}
	}
	return false
}

// checkGoVersion rejects modules whose go directive predates type parameters.
func (p *Parser) checkGoVersion(pkg *packages.Package, dir string) error {
	gomod := ""
	if pkg.Module != nil {
		gomod = pkg.Module.GoMod
	}
	if gomod == "" {
		modDir, err := findGoModDir(dir)
		if err != nil {
			// GOPATH mode has no go directive to check.
			return nil
		}
		gomod = filepath.Join(modDir, "go.mod")
	}

	v, ok := p.goVersions[gomod]
	if !ok {
		var err error
		if v, err = parseGoVersion(gomod); err != nil {
			return err
		}
		p.goVersions[gomod] = v
	}
	if semver.Compare("v"+v, "v"+MinGoVersion) < 0 {
		return fmt.Errorf("%s: builders need go %s or later, %s declares go %s", pkg.PkgPath, MinGoVersion, gomod, v)
	}
	return nil
}

// findGoModDir walks up from dir until it finds go.mod.
func findGoModDir(from string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(from, "go.mod")); err == nil {
			return from, nil
		}
		parent := filepath.Dir(from)
		if parent == from {
			return "", fmt.Errorf("no go.mod found")
		}
		from = parent
	}
}

// parseGoVersion returns the go directive of a go.mod file as a semver core
// without prerelease, 1.16 when it has none.
func parseGoVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read go.mod: %w", err)
	}
	mf, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return "", fmt.Errorf("parse go.mod: %w", err)
	}
	if mf.Go == nil {
		return "1.16", nil
	}
	v := mf.Go.Version
	if i := strings.IndexFunc(v, func(r rune) bool { return (r < '0' || r > '9') && r != '.' }); i >= 0 {
		v = v[:i]
	}
	return v, nil
}
