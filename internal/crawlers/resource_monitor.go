package crawlers

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/RecoveryAshes/NewsCrawl/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 采样可用内存和CPU负载,为浏览器标签页池计算上限
type ResourceMonitor struct {
	config ResourceMonitorConfig

	mu           sync.RWMutex
	availableMem uint64  // 最近一次采样的系统可用内存(字节)
	cpuUsage     float64 // 最近一次采样的CPU使用率(%)

	// 采样函数,测试时可替换
	sampleMemory func() (uint64, error)
	sampleCPU    func() (float64, error)

	cancelFunc context.CancelFunc
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	MaxPagesLimit    int    // 标签页绝对上限
	PageMemoryUsage  uint64 // 单个标签页平均内存(字节)
	SafetyReserve    uint64 // 为系统保留的内存(字节)
	CPULoadThreshold int    // 超过此CPU使用率不再新建标签页, >=200 表示禁用
}

// DefaultResourceMonitorConfig 默认配置
func DefaultResourceMonitorConfig(maxPages int) ResourceMonitorConfig {
	return ResourceMonitorConfig{
		MaxPagesLimit:    maxPages,
		PageMemoryUsage:  100 * 1024 * 1024,
		SafetyReserve:    512 * 1024 * 1024,
		CPULoadThreshold: 95,
	}
}

// NewResourceMonitor 创建资源监控器并立即采样一次
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.PageMemoryUsage == 0 {
		config.PageMemoryUsage = 100 * 1024 * 1024
	}
	if config.MaxPagesLimit < 1 {
		config.MaxPagesLimit = 1
	}

	rm := &ResourceMonitor{
		config: config,
		sampleMemory: func() (uint64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.Available, nil
		},
		sampleCPU: func() (float64, error) {
			percentages, err := cpu.Percent(100*time.Millisecond, false)
			if err != nil || len(percentages) == 0 {
				return 0, err
			}
			return percentages[0], nil
		},
	}
	rm.sample()

	rm.mu.RLock()
	utils.Infof("系统可用内存: %.2f GB", float64(rm.availableMem)/(1024*1024*1024))
	rm.mu.RUnlock()

	return rm
}

// sample 采样一次内存和CPU
func (rm *ResourceMonitor) sample() {
	available, err := rm.sampleMemory()
	if err != nil {
		utils.Warnf("获取系统内存失败,按4GB估算: %v", err)
		available = 4 * 1024 * 1024 * 1024
	}
	usage, err := rm.sampleCPU()
	if err != nil {
		utils.Debugf("获取CPU使用率失败: %v", err)
	}

	rm.mu.Lock()
	rm.availableMem = available
	rm.cpuUsage = usage
	rm.mu.Unlock()
}

// StartMonitoring 启动后台周期采样,重复调用无效果
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancelFunc != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.sample()
			}
		}
	}()
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.cancelFunc = nil
	}
}

// CalculateMaxPages 当前允许同时打开的标签页数
// min(可用内存/单页内存, CPU核数, 绝对上限), 至少为1
func (rm *ResourceMonitor) CalculateMaxPages() int {
	rm.mu.RLock()
	available := rm.availableMem
	rm.mu.RUnlock()

	byMemory := 1
	if available > rm.config.SafetyReserve {
		byMemory = int((available - rm.config.SafetyReserve) / rm.config.PageMemoryUsage)
	}

	result := byMemory
	if n := runtime.NumCPU(); n < result {
		result = n
	}
	if rm.config.MaxPagesLimit < result {
		result = rm.config.MaxPagesLimit
	}
	if result < 1 {
		result = 1
	}
	return result
}

// CanCreatePage 当前资源是否允许新建标签页,不允许时返回原因
func (rm *ResourceMonitor) CanCreatePage() (bool, string) {
	rm.mu.RLock()
	available := rm.availableMem
	usage := rm.cpuUsage
	rm.mu.RUnlock()

	if available < rm.config.SafetyReserve+rm.config.PageMemoryUsage {
		return false, "可用内存不足"
	}
	if rm.config.CPULoadThreshold < 200 && usage > float64(rm.config.CPULoadThreshold) {
		return false, "CPU负载过高"
	}
	return true, ""
}
