package watchdog

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const cgroupMemoryPath = "/sys/fs/cgroup/memory.current"

// readMemoryKB samples current memory usage in KB. Inside the sandbox
// the container's cgroup v2 file covers the whole process tree; when it
// is unavailable the child's VmRSS is used instead.
func readMemoryKB(pid int) (int64, error) {
	if data, err := os.ReadFile(cgroupMemoryPath); err == nil {
		return parseCgroupBytesKB(string(data))
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, err
	}
	return parseVmRSSKB(string(data))
}

// parseCgroupBytesKB converts the byte count in memory.current to KB.
func parseCgroupBytesKB(content string) (int64, error) {
	bytes, err := strconv.ParseInt(strings.TrimSpace(content), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse memory.current: %w", err)
	}
	return bytes / 1024, nil
}

// parseVmRSSKB extracts the VmRSS value (already in KB) from a
// /proc/<pid>/status document.
func parseVmRSSKB(content string) (int64, error) {
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse VmRSS: %w", err)
		}
		return kb, nil
	}
	return 0, fmt.Errorf("VmRSS not found in status")
}
