// Package health implements the disk health collaborator the read
// dispatcher's health-check message type calls synchronously
// (spec.md §4.G), adapted from the teacher's HealthChecker.
package health

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

type CheckResult struct {
	Name      string
	Status    Status
	Message   string
	Timestamp time.Time
}

// Checker runs synchronous disk-health checks for one node's data
// directory.
type Checker struct {
	dataDir string
	logger  *zap.Logger

	mu     sync.RWMutex
	checks map[string]CheckResult
	status Status
}

func NewChecker(dataDir string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{dataDir: dataDir, logger: logger, checks: make(map[string]CheckResult), status: StatusHealthy}
}

// Check runs every registered check synchronously and returns the
// aggregate status, the shape the read dispatcher's health-check
// message type needs (spec.md §4.G: "synchronous response from the
// disk-health collaborator").
func (c *Checker) Check() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := []CheckResult{c.checkDiskSpace(), c.checkDataDirAccessible()}

	status := StatusHealthy
	for _, r := range results {
		c.checks[r.Name] = r
		if r.Status == StatusCritical {
			status = StatusCritical
		} else if r.Status == StatusDegraded && status == StatusHealthy {
			status = StatusDegraded
		}
	}
	c.status = status
	return status
}

func (c *Checker) checkDiskSpace() CheckResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(c.dataDir, &stat); err != nil {
		return CheckResult{Name: "disk_space", Status: StatusCritical, Message: fmt.Sprintf("failed to stat filesystem: %v", err), Timestamp: time.Now()}
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	if total == 0 {
		return CheckResult{Name: "disk_space", Status: StatusHealthy, Timestamp: time.Now()}
	}
	usagePercent := float64(total-free) / float64(total) * 100

	switch {
	case usagePercent > 95:
		return CheckResult{Name: "disk_space", Status: StatusCritical, Message: fmt.Sprintf("disk usage critical: %.2f%%", usagePercent), Timestamp: time.Now()}
	case usagePercent > 90:
		return CheckResult{Name: "disk_space", Status: StatusDegraded, Message: fmt.Sprintf("disk usage high: %.2f%%", usagePercent), Timestamp: time.Now()}
	default:
		return CheckResult{Name: "disk_space", Status: StatusHealthy, Message: fmt.Sprintf("disk usage: %.2f%%", usagePercent), Timestamp: time.Now()}
	}
}

func (c *Checker) checkDataDirAccessible() CheckResult {
	info, err := os.Stat(c.dataDir)
	if err != nil {
		return CheckResult{Name: "data_dir_accessible", Status: StatusCritical, Message: fmt.Sprintf("data directory not accessible: %v", err), Timestamp: time.Now()}
	}
	if !info.IsDir() {
		return CheckResult{Name: "data_dir_accessible", Status: StatusCritical, Message: "data path is not a directory", Timestamp: time.Now()}
	}
	return CheckResult{Name: "data_dir_accessible", Status: StatusHealthy, Timestamp: time.Now()}
}

func (c *Checker) LastChecks() map[string]CheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]CheckResult, len(c.checks))
	for k, v := range c.checks {
		out[k] = v
	}
	return out
}
