package dispatchz

import (
	"strconv"
	"strings"
)

// BuildArgv constructs the argv for a worker's child process, matching
// §4.2/§6's per-class invocation convention. execPath is whatever the
// Preparer resolved (the program file itself for MAPLE/C_BINARY/PYTHON,
// or a wrapper script path for PARI/SAGE/OCTAVE).
func BuildArgv(class TaskClass, taskID int, rawArgs, execPath string) []string {
	id := strconv.Itoa(taskID)

	switch class {
	case ClassMaple:
		return []string{
			"maple",
			`-tc "taskId:=` + id + `"`,
			`-c "taskArgs:=[` + rawArgs + `]"`,
			execPath,
		}
	case ClassCBinary:
		argv := []string{execPath, id}
		return append(argv, splitTokens(rawArgs)...)
	case ClassPython:
		argv := []string{"python", execPath, id}
		return append(argv, splitTokens(rawArgs)...)
	case ClassPari, ClassSage, ClassOctave:
		// Wrapper scripts mirror C_BINARY/PYTHON's argument-vector shape
		// with the wrapper path substituted for the program file.
		argv := []string{execPath, id}
		return append(argv, splitTokens(rawArgs)...)
	default:
		return []string{execPath, id}
	}
}

// splitTokens splits a raw argument string on commas into the positional
// tokens passed to C_BINARY/PYTHON/wrapper child processes.
func splitTokens(rawArgs string) []string {
	if rawArgs == "" {
		return nil
	}
	return strings.Split(rawArgs, ",")
}
