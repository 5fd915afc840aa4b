package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService 指标服务
type MetricsService struct {
	handler http.Handler
}

// NewMetricsService 创建指标服务，暴露 gatherer 中注册的指标
func NewMetricsService(gatherer prometheus.Gatherer) *MetricsService {
	return &MetricsService{
		handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

// Handler 返回Prometheus指标的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return ms.handler
}

// ServeHTTP 实现http.Handler接口
func (ms *MetricsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.handler.ServeHTTP(w, r)
}
