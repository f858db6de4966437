package api

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics содержит сведения о процессе сервера
type ServerMetrics struct {
	StartTime time.Time

	once sync.Once
	proc *process.Process
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{StartTime: time.Now()}
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() string {
	uptime := time.Since(sm.StartTime).Truncate(time.Second)
	days := int(uptime.Hours()) / 24
	if days > 0 {
		return fmt.Sprintf("%dд %s", days, uptime-time.Duration(days)*24*time.Hour)
	}
	return uptime.String()
}

// GetMemoryUsage возвращает занятую кучей память в MB
func (sm *ServerMetrics) GetMemoryUsage() (float64, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc) / 1024 / 1024, nil
}

// GetCPUUsage возвращает использование CPU процессом в процентах. Если
// процесс недоступен, возвращает загрузку системы.
func (sm *ServerMetrics) GetCPUUsage() (float64, error) {
	sm.once.Do(func() {
		sm.proc, _ = process.NewProcess(int32(os.Getpid()))
	})
	if sm.proc != nil {
		if pct, err := sm.proc.CPUPercent(); err == nil {
			return pct, nil
		}
	}

	pcts, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("cpu: нет данных")
	}
	return pcts[0], nil
}

// GetDetailedMemoryStats возвращает статистику рантайма
func (sm *ServerMetrics) GetDetailedMemoryStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"heap_alloc_mb": float64(m.HeapAlloc) / 1024 / 1024,
		"sys_mb":        float64(m.Sys) / 1024 / 1024,
		"num_gc":        m.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}
}
