package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aihub/lotr-chat/internal/config"
	"github.com/aihub/lotr-chat/internal/logger"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	SystemPromptFile = "system_prompt.txt"
	UserPromptFile   = "user_prompt.txt"
)

// Templates 一组未渲染的提示词模板
type Templates struct {
	System string
	User   string
}

// TemplateSource loads the system and user prompt templates. Failures wrap
// ErrPromptTemplate.
type TemplateSource interface {
	Load(ctx context.Context) (Templates, error)
}

// NewTemplateSource 根据配置选择模板来源
func NewTemplateSource(cfg config.PromptsConfig, log *zap.Logger) (TemplateSource, error) {
	switch cfg.Source {
	case "", "file":
		files := NewFileTemplateSource(cfg.Dir)
		if !cfg.Watch {
			return files, nil
		}
		return NewWatchedTemplateSource(files, log)
	case "minio":
		return NewMinIOTemplateSource(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown prompt source %q", cfg.Source)
	}
}

// FileTemplateSource reads both templates from a directory on every Load.
type FileTemplateSource struct {
	dir string
}

func NewFileTemplateSource(dir string) *FileTemplateSource {
	if dir == "" {
		dir = "./assets/prompts"
	}
	return &FileTemplateSource{dir: dir}
}

func (s *FileTemplateSource) Dir() string {
	return s.dir
}

func (s *FileTemplateSource) Load(ctx context.Context) (Templates, error) {
	if err := ctx.Err(); err != nil {
		return Templates{}, fmt.Errorf("%w: %v", ErrPromptTemplate, err)
	}

	system, err := os.ReadFile(filepath.Join(s.dir, SystemPromptFile))
	if err != nil {
		return Templates{}, fmt.Errorf("%w: %v", ErrPromptTemplate, err)
	}
	user, err := os.ReadFile(filepath.Join(s.dir, UserPromptFile))
	if err != nil {
		return Templates{}, fmt.Errorf("%w: %v", ErrPromptTemplate, err)
	}

	return Templates{System: string(system), User: string(user)}, nil
}

// WatchedTemplateSource caches the templates of a directory and drops the cache
// whenever fsnotify reports a change in it.
type WatchedTemplateSource struct {
	files   *FileTemplateSource
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu     sync.RWMutex
	cached *Templates

	done chan struct{}
	once sync.Once
}

func NewWatchedTemplateSource(files *FileTemplateSource, log *zap.Logger) (*WatchedTemplateSource, error) {
	if log == nil {
		log = logger.Named("prompt")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create template watcher: %w", err)
	}
	if err := w.Add(files.Dir()); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch template dir %s: %w", files.Dir(), err)
	}

	s := &WatchedTemplateSource{
		files:   files,
		watcher: w,
		logger:  log,
		done:    make(chan struct{}),
	}
	go s.watch()
	return s, nil
}

func (s *WatchedTemplateSource) watch() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !isTemplateFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.invalidate()
			s.logger.Info("prompt template changed, cache dropped",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			// 监听出错时直接清缓存，下次Load重新读取
			s.invalidate()
			s.logger.Warn("prompt template watcher error", zap.Error(err))
		}
	}
}

func isTemplateFile(path string) bool {
	name := filepath.Base(path)
	return name == SystemPromptFile || name == UserPromptFile
}

func (s *WatchedTemplateSource) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *WatchedTemplateSource) Load(ctx context.Context) (Templates, error) {
	s.mu.RLock()
	if s.cached != nil {
		t := *s.cached
		s.mu.RUnlock()
		return t, nil
	}
	s.mu.RUnlock()

	t, err := s.files.Load(ctx)
	if err != nil {
		return Templates{}, err
	}

	s.mu.Lock()
	s.cached = &t
	s.mu.Unlock()
	return t, nil
}

// Close stops watching the template directory.
func (s *WatchedTemplateSource) Close() error {
	var err error
	s.once.Do(func() {
		err = s.watcher.Close()
		<-s.done
	})
	return err
}
