package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aihub/lotr-chat/internal/config"
	"github.com/aihub/lotr-chat/internal/di"
	"github.com/aihub/lotr-chat/internal/knowledge"
	"github.com/aihub/lotr-chat/internal/logger"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	answerStyle = color.New(color.FgGreen).SprintFunc()
	labelStyle  = color.New(color.FgCyan, color.Bold).SprintFunc()
	errorStyle  = color.New(color.FgRed).SprintFunc()
)

// answerer 与 services.Answerer 相同
type answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// pipelineBuilder 返回问答流水线及其清理函数
type pipelineBuilder func() (answerer, func(), error)

func newRootCmd(build pipelineBuilder) *cobra.Command {
	var (
		question string
		timeout  time.Duration
		noColor  bool
	)

	cmd := &cobra.Command{
		Use:           "ask",
		Short:         "Ask a question about Lord of the Rings characters",
		Long:          "ask runs the retrieval-augmented answering pipeline once and prints the answer. Nothing is stored.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if question == "" && len(args) > 0 {
				question = strings.Join(args, " ")
			}
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("a question is required (-q)")
			}
			if noColor {
				color.NoColor = true
			}

			pipeline, cleanup, err := build()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle("setup failed: "+err.Error()))
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			answer, err := pipeline.Answer(ctx, question)
			if err != nil {
				if stage, ok := knowledge.FailedStage(err); ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", errorStyle("failed at "+string(stage)+":"), err)
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), errorStyle(err.Error()))
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", labelStyle("Q:"), question)
			fmt.Fprintf(out, "%s %s\n", labelStyle("A:"), answerStyle(answer))
			fmt.Fprintf(out, "(%s)\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "question to ask")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall time limit")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

// buildPipeline 从配置和DI容器构建流水线，不连接数据库
func buildPipeline() (answerer, func(), error) {
	_ = godotenv.Load()
	if err := logger.InitLogger(); err != nil {
		return nil, nil, err
	}
	if err := config.LoadConfig(); err != nil {
		return nil, nil, err
	}
	if err := config.AppConfig.Validate(); err != nil {
		return nil, nil, err
	}

	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, nil, err
	}

	var (
		pipeline  *knowledge.Pipeline
		resources *di.Resources
	)
	if err := container.Invoke(func(p *knowledge.Pipeline, r *di.Resources) {
		pipeline, resources = p, r
	}); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := resources.Close(logger.GetLogger()); err != nil {
			logger.Warn("cleanup failed", zap.Error(err))
		}
		logger.Sync()
	}
	return pipeline, cleanup, nil
}
