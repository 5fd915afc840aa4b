package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/aihub/lotr-chat/internal/logger"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// QdrantOptions Qdrant客户端配置
type QdrantOptions struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// pointsQuerier is the part of *qdrant.Client the store needs.
type pointsQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

type qdrantVectorStore struct {
	client     pointsQuerier
	closeFn    func() error
	collection string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewQdrantVectorStore 创建Qdrant向量存储 (gRPC)
func NewQdrantVectorStore(opts QdrantOptions) (VectorStore, error) {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Port == 0 {
		opts.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := newQdrantStore(client, opts)
	store.closeFn = client.Close
	return store, nil
}

func newQdrantStore(client pointsQuerier, opts QdrantOptions) *qdrantVectorStore {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("qdrant")
	}
	return &qdrantVectorStore{
		client:     client,
		collection: opts.Collection,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}
}

func (s *qdrantVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]CharacterRecord, error) {
	if limit <= 0 {
		return []CharacterRecord{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query %s: %w", s.collection, err)
	}

	records := make([]CharacterRecord, 0, len(points))
	for _, point := range points {
		records = append(records, payloadToRecord(point.GetPayload()))
	}

	s.logger.Debug("qdrant query finished",
		zap.String("collection", s.collection),
		zap.Int("hits", len(records)))

	return truncateRecords(records, limit), nil
}

func (s *qdrantVectorStore) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

func payloadToRecord(payload map[string]*qdrant.Value) CharacterRecord {
	record := make(CharacterRecord, len(payload))
	for key, value := range payload {
		record[key] = qdrantValueToAny(value)
	}
	return record
}

// qdrantValueToAny 将protobuf Value转换为Go原生类型
func qdrantValueToAny(value *qdrant.Value) any {
	if value == nil {
		return nil
	}
	switch kind := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		result := make(map[string]any, len(fields))
		for k, v := range fields {
			result[k] = qdrantValueToAny(v)
		}
		return result
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		result := make([]any, 0, len(values))
		for _, v := range values {
			result = append(result, qdrantValueToAny(v))
		}
		return result
	default:
		return nil
	}
}
