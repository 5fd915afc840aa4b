package knowledge

import (
	"context"
	"strings"
	"time"

	"github.com/aihub/lotr-chat/internal/logger"
	"go.uber.org/zap"
)

// DefaultSearchLimit 每个问题检索的角色数量
const DefaultSearchLimit = 6

// PromptFormatter turns a query and its retrieved records into a prompt pair.
type PromptFormatter interface {
	Format(ctx context.Context, query string, records []CharacterRecord) (PromptPair, error)
}

// Pipeline runs embed → search → format → complete for a single question. It is the
// only place that knows the order of the stages.
type Pipeline struct {
	embedder  Embedder
	store     VectorStore
	prompts   PromptFormatter
	completer Completer
	metrics   *Metrics
	logger    *zap.Logger
	limit     int
}

// NewPipeline 创建问答流水线；metrics 可以为 nil
func NewPipeline(embedder Embedder, store VectorStore, prompts PromptFormatter, completer Completer, metrics *Metrics, log *zap.Logger) *Pipeline {
	if log == nil {
		log = logger.Named("pipeline")
	}
	return &Pipeline{
		embedder:  embedder,
		store:     store,
		prompts:   prompts,
		completer: completer,
		metrics:   metrics,
		logger:    log,
		limit:     DefaultSearchLimit,
	}
}

// Answer returns the model's answer to query, unmodified. Fatal failures are
// returned as *StageError; a failed search only degrades the context to empty.
func (p *Pipeline) Answer(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", p.fail(StageStart, ErrEmptyQuery)
	}

	start := time.Now()
	vector, err := p.embed(ctx, query)
	if err != nil {
		return "", p.fail(StageEmbedded, err)
	}

	records := p.searchOrDegrade(ctx, vector)

	prompt, err := p.format(ctx, query, records)
	if err != nil {
		return "", p.fail(StageFormatted, err)
	}

	answer, err := p.complete(ctx, prompt)
	if err != nil {
		return "", p.fail(StageCompleted, err)
	}

	p.observeAnswer("ok")
	p.logger.Info("question answered",
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return answer, nil
}

// AnswerLOTR is the entry point used by the conversation layer.
func (p *Pipeline) AnswerLOTR(ctx context.Context, query string) (string, error) {
	return p.Answer(ctx, query)
}

func (p *Pipeline) embed(ctx context.Context, query string) ([]float32, error) {
	defer p.observeStage(StageEmbedded, time.Now())
	return p.embedder.Embed(ctx, query)
}

// searchOrDegrade 检索失败时记录日志并返回空结果，不中断流程
func (p *Pipeline) searchOrDegrade(ctx context.Context, vector []float32) []CharacterRecord {
	defer p.observeStage(StageSearched, time.Now())

	records, err := p.store.Search(ctx, vector, p.limit)
	if err != nil {
		p.logger.Warn("vector search failed, answering without context",
			zap.Error(ErrSearchDegraded),
			zap.NamedError("cause", err))
		if p.metrics != nil {
			p.metrics.SearchDegraded.Inc()
		}
		return []CharacterRecord{}
	}
	return truncateRecords(records, p.limit)
}

func (p *Pipeline) format(ctx context.Context, query string, records []CharacterRecord) (PromptPair, error) {
	defer p.observeStage(StageFormatted, time.Now())
	return p.prompts.Format(ctx, query, records)
}

func (p *Pipeline) complete(ctx context.Context, prompt PromptPair) (string, error) {
	defer p.observeStage(StageCompleted, time.Now())
	return p.completer.Complete(ctx, prompt.System, prompt.User)
}

func (p *Pipeline) fail(stage Stage, err error) error {
	p.observeAnswer("failed")
	p.logger.Error("answer failed", zap.String("stage", string(stage)), zap.Error(err))
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) observeStage(stage Stage, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) observeAnswer(status string) {
	if p.metrics == nil {
		return
	}
	p.metrics.Answers.WithLabelValues(status).Inc()
}
