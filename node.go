package dispatchz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Node is one entry of the node inventory: a host and the number of
// worker cores it contributes.
type Node struct {
	Hostname string
	Cores    int
}

// LoadNodes parses the node file at path: UTF-8 text, one record per
// line, two whitespace-separated fields (hostname, core count), no
// header, no blank/comment lines. Order is preserved so slot indices are
// reproducible across runs.
func LoadNodes(path string) ([]Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewInputError(ExitNodeOpen, err)
	}
	defer f.Close()

	var nodes []Node
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		node, err := parseNodeLine(line)
		if err != nil {
			return nil, NewInputError(ExitNodeRead, fmt.Errorf("node file line %d: %w", lineNo, err))
		}
		nodes = append(nodes, node)
	}
	if err := scanner.Err(); err != nil {
		return nil, NewInputError(ExitNodeRead, err)
	}
	if len(nodes) == 0 {
		return nil, NewInputError(ExitNodeLines, fmt.Errorf("node file %s has no usable lines", path))
	}
	return nodes, nil
}

// parseNodeLine validates and parses a single "hostname cores" record.
func parseNodeLine(line string) (Node, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Node{}, fmt.Errorf("expected 2 fields (hostname cores), got %d", len(fields))
	}
	cores, err := strconv.Atoi(fields[1])
	if err != nil {
		return Node{}, fmt.Errorf("core count %q is not an integer: %w", fields[1], err)
	}
	if cores < 1 {
		return Node{}, fmt.Errorf("core count must be >= 1, got %d", cores)
	}
	return Node{Hostname: fields[0], Cores: cores}, nil
}

// TotalCores returns Σ node.Cores across the inventory, i.e.
// maxConcurrentTasks.
func TotalCores(nodes []Node) int {
	total := 0
	for _, n := range nodes {
		total += n.Cores
	}
	return total
}

// CountLines counts the number of lines in a file without loading it
// fully into memory, matching the original's getLineCount semantics: a
// missing or unreadable file surfaces as a returned error so callers
// distinguish "zero tasks" from "cannot open".
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			count++
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return count, err
		}
	}
	return count, nil
}
