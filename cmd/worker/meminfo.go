package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readMemAvailableKB implements dispatchz.AvailableMemoryFunc by reading
// /proc/meminfo's MemAvailable line, the kernel's own estimate of memory
// that can be allocated without swapping — the Go equivalent of the
// original's GENERIC-mode memcheck() heuristic.
func readMemAvailableKB() (int, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("reading /proc/meminfo: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed MemAvailable line: %q", line)
		}
		return strconv.Atoi(fields[1])
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("MemAvailable not found in /proc/meminfo")
}
