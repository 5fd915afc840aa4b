package knowledge

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aihub/lotr-chat/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectGetter 抽象MinIO对象读取，便于测试
type objectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

type minioObjectGetter struct {
	client *minio.Client
}

func (g minioObjectGetter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

// MinIOTemplateSource reads the prompt templates from an object storage bucket.
type MinIOTemplateSource struct {
	objects objectGetter
	bucket  string
	prefix  string
}

func NewMinIOTemplateSource(cfg config.MinIOConfig) (*MinIOTemplateSource, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "prompts"
	}

	// minio.New 不需要协议前缀
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOTemplateSource{
		objects: minioObjectGetter{client: client},
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
	}, nil
}

func (s *MinIOTemplateSource) Load(ctx context.Context) (Templates, error) {
	system, err := s.read(ctx, SystemPromptFile)
	if err != nil {
		return Templates{}, err
	}
	user, err := s.read(ctx, UserPromptFile)
	if err != nil {
		return Templates{}, err
	}
	return Templates{System: system, User: user}, nil
}

func (s *MinIOTemplateSource) read(ctx context.Context, name string) (string, error) {
	key := path.Join(s.prefix, name)
	object, err := s.objects.GetObject(ctx, s.bucket, key)
	if err != nil {
		return "", fmt.Errorf("%w: get %s/%s: %v", ErrPromptTemplate, s.bucket, key, err)
	}
	defer object.Close()

	// GetObject 是惰性的，错误在读取时才出现
	data, err := io.ReadAll(object)
	if err != nil {
		return "", fmt.Errorf("%w: read %s/%s: %v", ErrPromptTemplate, s.bucket, key, err)
	}
	return string(data), nil
}
