package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/aihub/lotr-chat/internal/config"
	"go.uber.org/zap"
)

// CharacterRecord 检索命中的角色payload
type CharacterRecord map[string]any

// VectorStore 向量检索抽象
type VectorStore interface {
	// Search returns the payloads of the nearest neighbours of vector, most similar
	// first, never more than limit.
	Search(ctx context.Context, vector []float32, limit int) ([]CharacterRecord, error)
	Close() error
}

const DefaultCollection = "lotr-characters"

// NewVectorStore 根据配置创建向量存储客户端
func NewVectorStore(cfg config.VectorStoreConfig, log *zap.Logger) (VectorStore, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "qdrant":
		return NewQdrantVectorStore(QdrantOptions{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Collection,
			Timeout:    cfg.Timeout,
			Logger:     log,
		})
	case "milvus":
		return NewMilvusVectorStore(MilvusOptions{
			Address:    cfg.Milvus.Address,
			Username:   cfg.Milvus.Username,
			Password:   cfg.Milvus.Password,
			Database:   cfg.Milvus.Database,
			UseTLS:     cfg.Milvus.TLS,
			Distance:   cfg.Milvus.Distance,
			Collection: cfg.Collection,
			Timeout:    cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown vector store provider %q", cfg.Provider)
	}
}

func truncateRecords(records []CharacterRecord, limit int) []CharacterRecord {
	if limit >= 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
