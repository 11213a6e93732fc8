package dispatchz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TaskClass identifies the kind of user program a task invokes.
// It determines both how the worker's child process is invoked and
// whether the Task Preparer synthesizes a wrapper script before dispatch.
type TaskClass int

// Task classes, matching the program_flag CLI argument (0..5).
const (
	ClassMaple TaskClass = iota
	ClassCBinary
	ClassPython
	ClassPari
	ClassSage
	ClassOctave
)

// String renders the task class name, used in log lines and wrapper
// script file names.
func (c TaskClass) String() string {
	switch c {
	case ClassMaple:
		return "maple"
	case ClassCBinary:
		return "c_binary"
	case ClassPython:
		return "python"
	case ClassPari:
		return "pari"
	case ClassSage:
		return "sage"
	case ClassOctave:
		return "octave"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// ParseTaskClass maps the program_flag CLI argument (0..5) to a
// TaskClass, rejecting anything else as spec.md requires.
func ParseTaskClass(flag int) (TaskClass, error) {
	if flag < int(ClassMaple) || flag > int(ClassOctave) {
		return 0, NewInputError(ExitWrongTaskClass, ErrWrongTaskClass)
	}
	return TaskClass(flag), nil
}

// NeedsWrapper reports whether this class requires the Task Preparer to
// materialize an interpreter wrapper script before dispatch.
func (c TaskClass) NeedsWrapper() bool {
	switch c {
	case ClassPari, ClassSage, ClassOctave:
		return true
	default:
		return false
	}
}

// Task is one row of the data file: an opaque integer id and the raw
// argument string handed to the user program verbatim (minus the
// trailing newline and the id's leading comma).
type Task struct {
	ID      int
	RawArgs string
}

// parseTaskLine splits a data-file line "id,arg1,arg2,..." into a Task.
// The id must be an integer in the first comma-separated field; the rest
// of the line (verbatim, trailing newline stripped) becomes RawArgs.
// This conflates the delimiter with argument content and makes no
// provision for escaping — a known, intentional limitation carried from
// the original data-file format; callers must not attempt to "fix" it,
// as doing so would break data-file compatibility.
func parseTaskLine(line string) (Task, error) {
	line = strings.TrimRight(line, "\r\n")
	comma := strings.IndexByte(line, ',')
	var idField string
	var rawArgs string
	if comma == -1 {
		idField = line
		rawArgs = ""
	} else {
		idField = line[:comma]
		rawArgs = line[comma+1:]
	}
	id, err := strconv.Atoi(idField)
	if err != nil {
		return Task{}, NewInputError(ExitDataFileFirstCol, ErrDataFileFirstCol)
	}
	return Task{ID: id, RawArgs: rawArgs}, nil
}

// TaskSource streams Tasks from the data file one line at a time so the
// scheduler never holds the whole file in memory, matching spec.md's
// "tasks are created lazily by reading the data file as a stream".
type TaskSource struct {
	file    *os.File
	reader  *bufio.Reader
	nTasks  int
	emitted int
}

// OpenTaskSource opens path and counts its lines up front (nTasks), then
// rewinds so Next can stream from the beginning.
func OpenTaskSource(path string) (*TaskSource, error) {
	n, err := CountLines(path)
	if err != nil {
		return nil, NewInputError(ExitDataFileLines, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, NewInputError(ExitDataFileLines, err)
	}
	return &TaskSource{file: f, reader: bufio.NewReader(f), nTasks: n}, nil
}

// NTasks returns the total task count discovered at open time.
func (s *TaskSource) NTasks() int { return s.nTasks }

// Next returns the next Task, or io.EOF once the stream is exhausted.
func (s *TaskSource) Next() (Task, error) {
	line, err := s.reader.ReadString('\n')
	if len(line) == 0 {
		if err == nil {
			err = io.EOF
		}
		return Task{}, err
	}
	task, perr := parseTaskLine(line)
	if perr != nil {
		return Task{}, perr
	}
	s.emitted++
	return task, nil
}

// Close releases the underlying file descriptor.
func (s *TaskSource) Close() error {
	return s.file.Close()
}
