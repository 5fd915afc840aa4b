package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

const metricsStartKey = "metrics:start"

// QueryMetrics 通过gorm回调记录查询次数、耗时和错误
type QueryMetrics struct {
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// NewQueryMetrics 创建并注册数据库指标；db 非空时同时注册连接池指标
func NewQueryMetrics(reg prometheus.Registerer, db *sql.DB) *QueryMetrics {
	m := &QueryMetrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lotr_db_queries_total",
			Help: "Database operations by type and table",
		}, []string{"operation", "table"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lotr_db_query_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation", "table"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lotr_db_errors_total",
			Help: "Failed database operations, not-found excluded",
		}, []string{"operation", "table"}),
	}

	if reg != nil {
		reg.MustRegister(m.queries, m.duration, m.errors)
		if db != nil {
			reg.MustRegister(collectors.NewDBStatsCollector(db, "lotr_chat"))
		}
	}
	return m
}

// Register 挂到gorm回调链上
func (m *QueryMetrics) Register(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		operation string
		before    func(string, func(*gorm.DB)) error
		after     func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, h := range hooks {
		if err := h.before("metrics:before_"+h.operation, m.before); err != nil {
			return err
		}
		if err := h.after("metrics:after_"+h.operation, m.after(h.operation)); err != nil {
			return err
		}
	}
	return nil
}

func (m *QueryMetrics) before(db *gorm.DB) {
	db.InstanceSet(metricsStartKey, time.Now())
}

func (m *QueryMetrics) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		m.queries.WithLabelValues(operation, table).Inc()
		if v, ok := db.InstanceGet(metricsStartKey); ok {
			if start, ok := v.(time.Time); ok {
				m.duration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
			}
		}
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			m.errors.WithLabelValues(operation, table).Inc()
		}
	}
}
