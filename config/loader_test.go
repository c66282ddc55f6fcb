package config_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/converge/converge/config"
	"github.com/hashicorp/hcl2/hcl"
)

// writeProject creates a project on disk from relative file names.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "converge-config")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoader_Root(t *testing.T) {
	dir := writeProject(t, map[string]string{
		".converge/root":     "",
		"main.hcl":           `resource "aws_vpc" "main" {}`,
		"network/subnet.hcl": `resource "aws_subnet" "a" {}`,
	})

	l := &config.Loader{}

	// From the root itself.
	got, err := l.Root(dir)
	if err != nil {
		t.Fatalf("Root() err = %v", err)
	}
	if got != dir {
		t.Errorf("Root() got = %q, want = %q", got, dir)
	}

	// From a sub directory, parents are traversed.
	got, err = l.Root(filepath.Join(dir, "network"))
	if err != nil {
		t.Fatalf("Root() err = %v", err)
	}
	if got != dir {
		t.Errorf("Root(subdir) got = %q, want = %q", got, dir)
	}
}

func TestLoader_Root_notFound(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"main.hcl": ``,
	})

	l := &config.Loader{}
	got, err := l.Root(dir)
	if err != nil {
		t.Fatalf("Root() err = %v", err)
	}
	if got != "" {
		t.Errorf("Root() got = %q, want empty", got)
	}
}

func TestLoader_Load(t *testing.T) {
	dir := writeProject(t, map[string]string{
		".converge/root": "",
		"vpc.hcl": `
resource "aws_vpc" "main" {
  cidr_block = "10.0.0.0/16"
}
`,
		"network/subnet.hcl": `
resource "aws_subnet" "a" {
  count      = 2
  cidr_block = "10.0.${count.index}.0/24"
}

output "subnet_ids" {
  value = aws_subnet.a[*].id
}
`,
		"empty.hcl": ``,
		"notes.txt": `not config`,
	})

	l := &config.Loader{}
	body, diags := l.Load(dir)
	if diags.HasErrors() {
		t.Fatalf("Load() diags = %v", diags)
	}

	// Both .hcl files are merged; the empty file and the text file are
	// skipped.
	cont, diags := body.Content(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "resource", LabelNames: []string{"type", "name"}},
			{Type: "output", LabelNames: []string{"name"}},
		},
	})
	if diags.HasErrors() {
		t.Fatalf("Content() diags = %v", diags)
	}
	if len(cont.Blocks) != 3 {
		t.Errorf("blocks len = %d, want 3", len(cont.Blocks))
	}
}

func TestLoader_Load_syntaxError(t *testing.T) {
	dir := writeProject(t, map[string]string{
		".converge/root": "",
		"bad.hcl":        `resource "aws_vpc" {`,
	})

	l := &config.Loader{}
	_, diags := l.Load(dir)
	if !diags.HasErrors() {
		t.Fatal("Load() returned no error diagnostics")
	}
}

func TestLoader_Load_noFiles(t *testing.T) {
	dir := writeProject(t, map[string]string{
		".converge/root": "",
	})

	l := &config.Loader{}
	_, diags := l.Load(dir)
	if !diags.HasErrors() {
		t.Fatal("Load() returned no error diagnostics for empty project")
	}
}
