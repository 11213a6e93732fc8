package dispatchz

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"
)

// RunChild forks, execs, and waits for one task's child process, the Go
// analogue of task_fork.c's fork/dup2/execvp/waitid sequence. Stdout and
// stderr are unconditionally redirected to "<out_dir>/<task_id>_out.txt"
// and "<task_id>_err.txt" (mode 0666), per spec.md §4.2.d — the original
// child always opens and dup2's both descriptors before exec, regardless
// of any CLI flag.
//
// On exec/start failure this returns a FORK_ERR-equivalent error the
// caller should translate to StatusForkErr. Once started, the child's
// own exit status determines OK vs TASK_KILLED — RunChild itself never
// returns that classification, leaving it to ClassifyExit. errPath is
// returned whenever both output files were opened, so a caller that wants
// extra diagnostics on failure (the worker's createErrFiles verbosity
// flag) can read it back; it is empty if opening them failed.
func RunChild(class TaskClass, taskID int, rawArgs, execPath, outDir string) (result Result, errPath string, err error) {
	argv := BuildArgv(class, taskID, rawArgs, execPath)

	cmd := exec.Command(argv[0], argv[1:]...)

	outPath := filepath.Join(outDir, strconv.Itoa(taskID)+"_out.txt")
	errPath = filepath.Join(outDir, strconv.Itoa(taskID)+"_err.txt")

	outFile, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return Result{}, "", err
	}
	defer outFile.Close()
	errFile, err := os.OpenFile(errPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return Result{}, "", err
	}
	defer errFile.Close()
	cmd.Stdout = outFile
	cmd.Stderr = errFile

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, errPath, err
	}

	waitErr := cmd.Wait()
	execTime := time.Since(start)

	status := ClassifyExit(class, cmd.ProcessState, waitErr)

	var profile ResourceProfile
	if ru, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage); ok {
		profile = ResourceProfileFromRusage(ru)
	}

	return Result{
		TaskID:   taskID,
		RawArgs:  rawArgs,
		Status:   status,
		ExecTime: execTime,
		Profile:  profile,
	}, errPath, nil
}

// ClassifyExit implements §4.2 step e: "if wait reports abnormal
// termination (signal, or exit-with-error from a class whose convention
// treats non-zero as killed) → TASK_KILLED, else OK". Every supported
// class treats any non-zero exit or signal death as killed; dispatchz
// carries no class whose convention tolerates non-zero as success.
func ClassifyExit(_ TaskClass, state *os.ProcessState, waitErr error) Status {
	if waitErr == nil && state != nil && state.Success() {
		return StatusOK
	}
	return StatusTaskKilled
}
