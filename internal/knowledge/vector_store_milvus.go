package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Database   string
	UseTLS     bool
	Distance   string
	Collection string
	Timeout    time.Duration
}

// milvusSearcher is the subset of client.Client used for retrieval.
type milvusSearcher interface {
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int,
		sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Close() error
}

type milvusVectorStore struct {
	client     milvusSearcher
	collection string
	metric     entity.MetricType
	timeout    time.Duration
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return newMilvusStore(milvusClient, opts), nil
}

func newMilvusStore(searcher milvusSearcher, opts MilvusOptions) *milvusVectorStore {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &milvusVectorStore{
		client: searcher,
		// Milvus集合名不允许出现"-"
		collection: strings.ReplaceAll(opts.Collection, "-", "_"),
		metric:     milvusMetric(opts.Distance),
		timeout:    opts.Timeout,
	}
}

func milvusMetric(value string) entity.MetricType {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return entity.IP
	case "L2", "EUCLIDEAN":
		return entity.L2
	default:
		return entity.COSINE
	}
}

func (s *milvusVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]CharacterRecord, error) {
	if limit <= 0 {
		return []CharacterRecord{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("milvus search param: %w", err)
	}

	results, err := s.client.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		CharacterFields,
		[]entity.Vector{entity.FloatVector(vector)},
		"vector",
		s.metric,
		limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(results) == 0 {
		return []CharacterRecord{}, nil
	}

	// 只有一个查询向量，取第一个结果
	result := results[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}

	records := make([]CharacterRecord, result.ResultCount)
	for i := range records {
		records[i] = CharacterRecord{}
	}
	for _, column := range result.Fields {
		for i := 0; i < result.ResultCount && i < column.Len(); i++ {
			value, err := column.Get(i)
			if err != nil {
				continue
			}
			records[i][column.Name()] = value
		}
	}

	return truncateRecords(records, limit), nil
}

func (s *milvusVectorStore) Close() error {
	return s.client.Close()
}
