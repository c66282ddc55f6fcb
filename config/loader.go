// Package config loads project configuration from .hcl files on disk.
//
// A project is a directory tree with a .converge/root marker file at its
// root. All .hcl files under the root are loaded and merged into a single
// body, which the decoder then turns into resources and outputs.
package config

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl2/hcl"
	"github.com/hashicorp/hcl2/hcl/hclsyntax"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh/terminal"
)

// RootMarker is the file that marks the root directory of a project,
// relative to the root. The contents of the file are not significant.
const RootMarker = ".converge/root"

type file struct {
	name  string
	bytes []byte
	file  *hcl.File
}

func (f *file) empty() bool {
	body, ok := f.file.Body.(*hclsyntax.Body)
	if !ok {
		return false
	}
	return len(body.Blocks) == 0 && len(body.Attributes) == 0
}

// A Loader loads configuration files from .hcl files on disk.
//
// The zero value is ready to load files.
type Loader struct {
	files map[string]*file
}

// WriteDiagnostics writes diagnostics as a human readable string to w. It
// should only be used for diagnostics that originate from files loaded by
// Loader.
//
// If a TTY is attached, the output will be colorized and wrap at the
// terminal width. Otherwise, wrap will occur at 78 characters and output
// won't contain ANSI escape characters.
func (l *Loader) WriteDiagnostics(w io.Writer, diags hcl.Diagnostics) {
	files := make(map[string]*hcl.File, len(l.files))
	for name, f := range l.files {
		if f.file != nil {
			files[name] = f.file
			continue
		}
		// Parsing failed; diagnostics can still quote the source.
		files[name] = &hcl.File{Bytes: f.bytes}
	}
	cols, _, err := terminal.GetSize(0)
	if err != nil {
		cols = 78
	}
	color := terminal.IsTerminal(0)
	wr := hcl.NewDiagnosticTextWriter(w, files, uint(cols), color)
	if err := wr.WriteDiagnostics(diags); err != nil {
		fmt.Fprintln(w, err)
	}
}

// Root finds the root directory of a project. The returned string is the
// absolute path to the project on disk.
//
// The root directory is determined by the root marker file existing. If the
// given dir is not a project root, parent directories are traversed until a
// root is found.
//
// An error is returned if the dir cannot be opened. An empty string is
// returned if no project root was found.
func (l *Loader) Root(dir string) (string, error) {
	if _, err := os.Stat(dir); err != nil {
		return "", err
	}
	marker := filepath.Join(dir, filepath.FromSlash(RootMarker))
	stat, err := os.Stat(marker)
	if err == nil && !stat.IsDir() {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", err
		}
		return abs, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir || parent[len(parent)-1] == filepath.Separator {
		return "", nil
	}

	return l.Root(parent)
}

// Load loads all the config files from the given root directory, traversing
// into sub directories, and merges them into a single body.
//
// If an empty .hcl file is encountered, it is not added.
func (l *Loader) Load(root string) (hcl.Body, hcl.Diagnostics) {
	var files []*hcl.File
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if info.IsDir() {
			return nil
		}
		if !isConfigFile(path) {
			return nil
		}

		f, diags := l.loadFile(path)
		if diags.HasErrors() {
			return diags
		}

		if f.empty() {
			return nil
		}

		files = append(files, f.file)
		return nil
	})
	if err != nil {
		if d, ok := err.(hcl.Diagnostics); ok {
			return nil, d
		}
		return nil, diagErr(err)
	}
	if len(files) == 0 {
		return nil, diagErr(errors.Errorf("no config files found in %s", root))
	}
	return hcl.MergeFiles(files), nil
}

func isConfigFile(filename string) bool {
	return filepath.Ext(filename) == ".hcl"
}

func (l *Loader) loadFile(filename string) (*file, hcl.Diagnostics) {
	if l.files == nil {
		l.files = make(map[string]*file)
	}
	if f, ok := l.files[filename]; ok {
		return f, nil
	}

	src, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, diagErr(err)
	}

	// Add placeholder file, so diagnostics can quote the source if
	// parsing fails.
	l.files[filename] = &file{bytes: src}

	// Native parsing keeps the full expression syntax tree, which the
	// decoder needs to understand splat and index references.
	parsed, diags := hclsyntax.ParseConfig(src, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, diags
	}

	f := &file{
		name:  filename,
		bytes: src,
		file:  parsed,
	}
	l.files[filename] = f

	return f, nil
}

// diagErr converts a native error to diagnostics
func diagErr(err error) hcl.Diagnostics {
	return hcl.Diagnostics{{Severity: hcl.DiagError, Summary: err.Error()}}
}
