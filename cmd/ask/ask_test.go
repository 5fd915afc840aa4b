package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aihub/lotr-chat/internal/knowledge"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnswerer struct {
	answer string
	err    error
	got    string
}

func (f *fakeAnswerer) Answer(_ context.Context, query string) (string, error) {
	f.got = query
	return f.answer, f.err
}

func run(t *testing.T, a *fakeAnswerer, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	cleaned := false

	cmd := newRootCmd(func() (answerer, func(), error) {
		return a, func() { cleaned = true }, nil
	})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if a.got != "" {
		assert.True(t, cleaned)
	}
	return stdout.String(), stderr.String(), err
}

func TestAsk_PrintsAnswer(t *testing.T) {
	a := &fakeAnswerer{answer: "Frodo Baggins is a Hobbit of the Shire."}

	stdout, _, err := run(t, a, "-q", "Who is Frodo?")
	require.NoError(t, err)
	assert.Equal(t, "Who is Frodo?", a.got)
	assert.Contains(t, stdout, "Q: Who is Frodo?")
	assert.Contains(t, stdout, "A: Frodo Baggins is a Hobbit of the Shire.")
}

func TestAsk_QuestionFromArgs(t *testing.T) {
	a := &fakeAnswerer{answer: "A wizard."}

	_, _, err := run(t, a, "Who", "is", "Gandalf?")
	require.NoError(t, err)
	assert.Equal(t, "Who is Gandalf?", a.got)
}

func TestAsk_RequiresQuestion(t *testing.T) {
	_, _, err := run(t, &fakeAnswerer{}, "-q", "   ")
	assert.EqualError(t, err, "a question is required (-q)")
}

func TestAsk_ReportsFailedStage(t *testing.T) {
	a := &fakeAnswerer{err: &knowledge.StageError{Stage: knowledge.StageEmbedded, Err: knowledge.ErrEmbeddingService}}

	_, stderr, err := run(t, a, "-q", "Who is Frodo?")
	require.Error(t, err)
	assert.Contains(t, stderr, "failed at "+string(knowledge.StageEmbedded))
}

func TestAsk_SetupFailure(t *testing.T) {
	cmd := newRootCmd(func() (answerer, func(), error) {
		return nil, nil, errors.New("missing configuration: ai.openai_api_key (OPENAI_API_KEY)")
	})
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"-q", "Who is Frodo?"})

	require.Error(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "setup failed")
}
