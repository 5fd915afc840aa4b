package di

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Resources 收集容器中创建的需要释放的资源，按创建的逆序关闭
type Resources struct {
	mu      sync.Mutex
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

func NewResources() *Resources {
	return &Resources{}
}

// Add 登记一个资源
func (r *Resources) Add(name string, closeFn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, namedCloser{name: name, close: closeFn})
}

// Close 关闭全部资源，单个失败不影响其余资源
func (r *Resources) Close(log *zap.Logger) error {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.close(); err != nil {
			if log != nil {
				log.Warn("close resource failed", zap.String("resource", c.name), zap.Error(err))
			}
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
