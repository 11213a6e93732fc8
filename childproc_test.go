package dispatchz

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestBuildArgv(t *testing.T) {
	cases := []struct {
		name    string
		class   TaskClass
		taskID  int
		rawArgs string
		path    string
		want    []string
	}{
		{
			name:    "Maple",
			class:   ClassMaple,
			taskID:  3,
			rawArgs: "1,2",
			path:    "/opt/prog.mpl",
			want: []string{
				"maple",
				`-tc "taskId:=3"`,
				`-c "taskArgs:=[1,2]"`,
				"/opt/prog.mpl",
			},
		},
		{
			name:    "CBinary",
			class:   ClassCBinary,
			taskID:  9,
			rawArgs: "a,b,c",
			path:    "/opt/prog",
			want:    []string{"/opt/prog", "9", "a", "b", "c"},
		},
		{
			name:    "CBinaryNoArgs",
			class:   ClassCBinary,
			taskID:  9,
			rawArgs: "",
			path:    "/opt/prog",
			want:    []string{"/opt/prog", "9"},
		},
		{
			name:    "Python",
			class:   ClassPython,
			taskID:  4,
			rawArgs: "x,y",
			path:    "/opt/prog.py",
			want:    []string{"python", "/opt/prog.py", "4", "x", "y"},
		},
		{
			name:    "Wrapper",
			class:   ClassSage,
			taskID:  1,
			rawArgs: "p,q",
			path:    "/out/auxprog-sage-1.sage",
			want:    []string{"/out/auxprog-sage-1.sage", "1", "p", "q"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildArgv(tc.class, tc.taskID, tc.rawArgs, tc.path)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestRunChildSuccess(t *testing.T) {
	outDir := t.TempDir()
	result, _, err := RunChild(ClassCBinary, 1, "", "/bin/true", outDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusOK {
		t.Errorf("expected StatusOK, got %v", result.Status)
	}
}

func TestRunChildFailure(t *testing.T) {
	outDir := t.TempDir()
	result, _, err := RunChild(ClassCBinary, 1, "", "/bin/false", outDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusTaskKilled {
		t.Errorf("expected StatusTaskKilled, got %v", result.Status)
	}
}

func TestRunChildForkError(t *testing.T) {
	outDir := t.TempDir()
	_, _, err := RunChild(ClassCBinary, 1, "", "/nonexistent/binary/path", outDir)
	if err == nil {
		t.Fatal("expected error for unstartable binary")
	}
}

func TestRunChildWritesOutputFilesUnconditionally(t *testing.T) {
	outDir := t.TempDir()
	_, errPath, err := RunChild(ClassCBinary, 42, "", "/bin/echo", outDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "42_out.txt")); statErr != nil {
		t.Errorf("expected 42_out.txt to be created: %v", statErr)
	}
	if _, statErr := os.Stat(errPath); statErr != nil {
		t.Errorf("expected %s to be created: %v", errPath, statErr)
	}
}
