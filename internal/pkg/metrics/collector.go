package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"

	"forge/internal/core/domain"
)

// Collector samples host resource usage while cracking jobs run.
type Collector struct {
	mu             sync.RWMutex
	metrics        map[string]*domain.ResourceMetrics
	updateInterval time.Duration
}

func NewCollector(interval time.Duration) *Collector {
	return &Collector{
		metrics:        make(map[string]*domain.ResourceMetrics),
		updateInterval: interval,
	}
}

func (c *Collector) StartCollection(jobID string) {
	c.mu.Lock()
	c.metrics[jobID] = &domain.ResourceMetrics{
		LastUpdated: time.Now(),
	}
	c.mu.Unlock()

	go c.collect(jobID)
}

func (c *Collector) StopCollection(jobID string) {
	c.mu.Lock()
	delete(c.metrics, jobID)
	c.mu.Unlock()
}

func (c *Collector) GetMetrics(jobID string) *domain.ResourceMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, exists := c.metrics[jobID]; exists {
		snapshot := *m
		return &snapshot
	}
	return nil
}

func (c *Collector) UpdateAttempts(jobID string, attempts int64, activeThreads int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, exists := c.metrics[jobID]; exists {
		m.TotalAttempts = attempts
		m.ActiveThreads = activeThreads
	}
}

func (c *Collector) collect(jobID string) {
	ticker := time.NewTicker(c.updateInterval)
	defer ticker.Stop()

	for {
		c.mu.RLock()
		_, exists := c.metrics[jobID]
		c.mu.RUnlock()
		if !exists {
			return
		}

		cpuUsage, _ := cpu.Percent(0, false)
		vm, _ := mem.VirtualMemory()

		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)

		c.mu.Lock()
		if m, ok := c.metrics[jobID]; ok {
			if len(cpuUsage) > 0 {
				m.CPUUsage = cpuUsage[0]
			}
			if vm != nil {
				m.MemoryUsageMB = int64(vm.Used / 1024 / 1024)
			} else {
				m.MemoryUsageMB = int64(stats.Alloc / 1024 / 1024)
			}
			m.LastUpdated = time.Now()
		}
		c.mu.Unlock()

		<-ticker.C
	}
}
