package dispatchz

import (
	"fmt"
	"os"
	"path/filepath"
)

// OutputWriter owns the master-side log artifacts written over the life
// of a run: the unfinished-tasks ledger and, optionally, the slave/node
// info file. Both are mutated only by the scheduler, per SPEC_FULL.md's
// shared-resource policy.
type OutputWriter struct {
	outDir          string
	unfinishedPath  string
	unfinishedFile  *os.File
	unfinishedCount int
	nodeInfoFile    *os.File
}

// NewOutputWriter opens <outDir>/unfinished_tasks.txt for writing,
// creating it if needed and truncating any previous contents. Failure to create outDir or the file is an
// ExitOutDir input error.
func NewOutputWriter(outDir string) (*OutputWriter, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, NewInputError(ExitOutDir, err)
	}
	path := filepath.Join(outDir, "unfinished_tasks.txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, NewInputError(ExitOutDir, err)
	}
	return &OutputWriter{outDir: outDir, unfinishedPath: path, unfinishedFile: f}, nil
}

// RecordResult appends a failed task to unfinished_tasks.txt, matching
// spec.md §3's invariant: "unfinished_tasks.txt contains exactly the set
// of tasks whose Result.status ≠ OK, in the order results were observed."
// OK results are a no-op here.
func (w *OutputWriter) RecordResult(r Result) error {
	if !r.Failed() {
		return nil
	}
	if _, err := fmt.Fprintf(w.unfinishedFile, "%d,%s\n", r.TaskID, r.RawArgs); err != nil {
		return err
	}
	w.unfinishedCount++
	return nil
}

// WriteNodeInfo writes <outDir>/node_info.txt when create-slavefile was
// requested, per §6: a commented slot → host map, the same
// "# NODE CODENAMES" / "# Node %2d -> %s" header PBala.c writes, followed
// by an empty "NODE,TASK" CSV section that AppendDispatch fills in one row
// per dispatch. Takes the spawned []Slot rather than []Node because the
// header records the dense slot index each host actually owns, not just
// its core count. The file stays open across the run so AppendDispatch can
// append further rows; Close must be called once the run finishes.
func (w *OutputWriter) WriteNodeInfo(slots []Slot) error {
	path := filepath.Join(w.outDir, "node_info.txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return NewInputError(ExitOutDir, err)
	}

	if _, err := fmt.Fprint(f, "# NODE CODENAMES\n"); err != nil {
		f.Close()
		return err
	}
	for _, s := range slots {
		if _, err := fmt.Fprintf(f, "# Node %2d -> %s\n", s.Index, s.Node.Hostname); err != nil {
			f.Close()
			return err
		}
	}
	if _, err := fmt.Fprint(f, "\nNODE,TASK\n"); err != nil {
		f.Close()
		return err
	}

	w.nodeInfoFile = f
	return nil
}

// AppendDispatch records one slot → task assignment in node_info.txt, in
// dispatch order, matching PBala.c's per-dispatch "%2d,%4d\n" CSV row. A
// no-op if WriteNodeInfo was never called (create-slavefile not set).
func (w *OutputWriter) AppendDispatch(slotIndex, taskID int) error {
	if w.nodeInfoFile == nil {
		return nil
	}
	_, err := fmt.Fprintf(w.nodeInfoFile, "%2d,%4d\n", slotIndex, taskID)
	return err
}

// WriteHostConfig writes the transport's host configuration file listing
// every node as "ep=<cwd> wd=<cwd>", per §4.1 step 4.
func WriteHostConfig(path, cwd string, nodes []Node) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, n := range nodes {
		if _, err := fmt.Fprintf(f, "%s ep=%s wd=%s\n", n.Hostname, cwd, cwd); err != nil {
			return err
		}
	}
	return nil
}

// Close finalizes the unfinished-tasks file. If no unfinished tasks were
// ever recorded, it deletes the file instead of leaving an empty one
// behind, per §4.1's shutdown sequence.
func (w *OutputWriter) Close() error {
	if w.nodeInfoFile != nil {
		if err := w.nodeInfoFile.Close(); err != nil {
			return err
		}
	}
	if err := w.unfinishedFile.Close(); err != nil {
		return err
	}
	if w.unfinishedCount == 0 {
		return os.Remove(w.unfinishedPath)
	}
	return nil
}

// UnfinishedCount reports how many failed tasks have been recorded so far.
func (w *OutputWriter) UnfinishedCount() int { return w.unfinishedCount }
