// Package workload implements the two external collaborators spec.md §6
// fixes the interface of but leaves unimplemented: the workload-file
// parser and the producer→scheduler message channel. Both are concrete,
// local stand-ins — the scheduler core only ever depends on the Arrival
// shape and the channel contract, never on how records actually reach it.
package workload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Arrival is one workload-file record, the payload of the
// producer→scheduler message queue described in spec.md §6.
type Arrival struct {
	ID       int
	Arrival  int
	Runtime  int
	Priority int
	MemSize  int
}

// ParseFile reads a workload file per spec.md §6: one record per line,
// whitespace-separated integers `<id> <arrival> <runtime> <priority>
// [<memsize>]`, `#`-prefixed comment lines, records not required to be
// sorted by arrival.
func ParseFile(path string) ([]Arrival, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("workload: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads workload records from r, per the same grammar as ParseFile.
func Parse(r io.Reader) ([]Arrival, error) {
	var out []Arrival
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 && len(fields) != 5 {
			return nil, fmt.Errorf("workload: line %d: want 4 or 5 fields, got %d", lineNo, len(fields))
		}
		ints := make([]int, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("workload: line %d: field %d: %w", lineNo, i+1, err)
			}
			ints[i] = v
		}
		a := Arrival{ID: ints[0], Arrival: ints[1], Runtime: ints[2], Priority: ints[3]}
		if len(ints) == 5 {
			a.MemSize = ints[4]
		}
		out = append(out, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("workload: scan: %w", err)
	}
	return out, nil
}
