package dispatchz

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreparerPassthroughForDirectClasses(t *testing.T) {
	p := NewPreparer()
	for _, class := range []TaskClass{ClassMaple, ClassCBinary, ClassPython} {
		execPath, err := p.Prepare(class, 1, "a,b", "/opt/prog", t.TempDir())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", class, err)
		}
		if execPath != "/opt/prog" {
			t.Errorf("%s: expected passthrough path, got %q", class, execPath)
		}
	}
}

func TestPreparerWritesWrapperForScriptedClasses(t *testing.T) {
	cases := []struct {
		class TaskClass
		ext   string
	}{
		{ClassPari, "q"},
		{ClassSage, "sage"},
		{ClassOctave, "m"},
	}

	for _, tc := range cases {
		t.Run(tc.class.String(), func(t *testing.T) {
			p := NewPreparer()
			outDir := t.TempDir()

			execPath, err := p.Prepare(tc.class, 7, "1,2,3", "/opt/prog", outDir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !strings.Contains(filepath.Base(execPath), "auxprog") {
				t.Errorf("expected wrapper path to contain 'auxprog', got %q", execPath)
			}
			if filepath.Ext(execPath) != "."+tc.ext {
				t.Errorf("expected extension .%s, got %q", tc.ext, execPath)
			}

			info, err := os.Stat(execPath)
			if err != nil {
				t.Fatalf("wrapper script not written: %v", err)
			}
			if info.Mode()&0o111 == 0 {
				t.Error("expected wrapper script to be executable")
			}

			content, err := os.ReadFile(execPath)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(content), "/opt/prog") {
				t.Errorf("expected wrapper to reference program path, got %q", content)
			}
			if !strings.Contains(string(content), "1,2,3") {
				t.Errorf("expected wrapper to reference raw args, got %q", content)
			}
		})
	}
}

func TestPreparerWrapsIOErrors(t *testing.T) {
	p := NewPreparer()
	_, err := p.Prepare(ClassSage, 1, "", "/opt/prog", "/nonexistent/dir/does/not/exist")
	if err == nil {
		t.Fatal("expected error for unwritable output directory")
	}
	if !errors.Is(err, ErrPreparerIO) {
		t.Errorf("expected ErrPreparerIO, got %v", err)
	}
}

func TestSweepAuxprogFiles(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "outfile.txt")
	drop1 := filepath.Join(dir, "auxprog-sage-1.sage")
	drop2 := filepath.Join(dir, "auxprog-pari-2.q")

	for _, f := range []string{keep, drop1, drop2} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := SweepAuxprogFiles(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(keep); err != nil {
		t.Errorf("expected %s to survive the sweep: %v", keep, err)
	}
	for _, f := range []string{drop1, drop2} {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed, stat err: %v", f, err)
		}
	}
}
