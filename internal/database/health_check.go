package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Probe 单个依赖的连通性检查
type Probe func(ctx context.Context) error

// SQLProbe ping 数据库连接池
func SQLProbe(db *sql.DB) Probe {
	return db.PingContext
}

// RedisProbe ping Redis
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// ComponentStatus 单个依赖的检查结果
type ComponentStatus struct {
	Healthy      bool   `json:"healthy"`
	Error        string `json:"error,omitempty"`
	ResponseTime string `json:"response_time"`
}

// HealthReport 健康检查结果
type HealthReport struct {
	Status     string                     `json:"status"`
	Healthy    bool                       `json:"healthy"`
	LastCheck  time.Time                  `json:"last_check"`
	Components map[string]ComponentStatus `json:"components"`
}

// HealthChecker 依赖健康检查器。database 为必需依赖，其余注册项失败时报告 degraded
type HealthChecker struct {
	logger        *logrus.Logger
	probes        map[string]Probe
	required      map[string]bool
	order         []string
	timeout       time.Duration
	checkInterval time.Duration

	mu       sync.RWMutex
	report   HealthReport
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *logrus.Logger) *HealthChecker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HealthChecker{
		logger:        logger,
		probes:        make(map[string]Probe),
		required:      make(map[string]bool),
		timeout:       5 * time.Second,
		checkInterval: 30 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// Register 注册依赖；required 为 true 时其失败使整体不健康
func (hc *HealthChecker) Register(name string, probe Probe, required bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if _, exists := hc.probes[name]; !exists {
		hc.order = append(hc.order, name)
	}
	hc.probes[name] = probe
	hc.required[name] = required
}

// SetCheckInterval 设置后台检查间隔
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// SetTimeout 设置单个依赖的检查超时
func (hc *HealthChecker) SetTimeout(timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.timeout = timeout
}

// Check 执行一次全部依赖的检查并更新缓存的结果
func (hc *HealthChecker) Check(ctx context.Context) HealthReport {
	hc.mu.RLock()
	names := append([]string(nil), hc.order...)
	timeout := hc.timeout
	hc.mu.RUnlock()

	report := HealthReport{
		Status:     "ok",
		Healthy:    true,
		LastCheck:  time.Now(),
		Components: make(map[string]ComponentStatus, len(names)),
	}

	for _, name := range names {
		hc.mu.RLock()
		probe, required := hc.probes[name], hc.required[name]
		hc.mu.RUnlock()

		status := hc.runProbe(ctx, name, probe, timeout)
		report.Components[name] = status
		if status.Healthy {
			continue
		}
		if required {
			report.Healthy = false
			report.Status = "unhealthy"
		} else if report.Healthy {
			report.Status = "degraded"
		}
	}

	hc.mu.Lock()
	previous := hc.report
	hc.report = report
	hc.mu.Unlock()

	if !previous.LastCheck.IsZero() && !previous.Healthy && report.Healthy {
		hc.logger.Info("Dependencies recovered")
	}
	return report
}

func (hc *HealthChecker) runProbe(ctx context.Context, name string, probe Probe, timeout time.Duration) ComponentStatus {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := probe(probeCtx)
	elapsed := time.Since(start)

	status := ComponentStatus{Healthy: err == nil, ResponseTime: elapsed.String()}
	if err != nil {
		status.Error = err.Error()
		hc.logger.WithFields(logrus.Fields{
			"component":     name,
			"error":         err.Error(),
			"response_time": elapsed,
		}).Warn("Health check failed")
		return status
	}

	hc.logger.WithFields(logrus.Fields{
		"component":     name,
		"response_time": elapsed,
	}).Debug("Health check passed")
	return status
}

// Start 后台定期检查，直到 ctx 结束或调用 Stop
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.RLock()
	interval := hc.checkInterval
	hc.mu.RUnlock()

	hc.logger.WithField("interval", interval).Info("Starting health checker")
	hc.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hc.logger.Info("Health checker stopped")
			return
		case <-hc.stopChan:
			hc.logger.Info("Health checker stopped")
			return
		case <-ticker.C:
			hc.Check(ctx)
		}
	}
}

// Stop 停止后台检查
func (hc *HealthChecker) Stop() {
	hc.stopOnce.Do(func() { close(hc.stopChan) })
}

// IsHealthy 最近一次检查的结果
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.report.Healthy && !hc.report.LastCheck.IsZero()
}

// Report 返回最近一次的检查结果
func (hc *HealthChecker) Report() HealthReport {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.report
}

// WaitForHealthy 等待所有必需依赖可用
func (hc *HealthChecker) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if hc.Check(timeoutCtx).Healthy {
			return nil
		}
		select {
		case <-timeoutCtx.Done():
			return timeoutCtx.Err()
		case <-ticker.C:
		}
	}
}
