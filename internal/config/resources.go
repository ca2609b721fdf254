package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// detectRAMMB returns total system memory in MB, or 0 when it cannot be
// determined. Derive treats 0 as "unknown" and leaves memory settings alone.
func detectRAMMB() int {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}
