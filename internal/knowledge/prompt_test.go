package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProjectRecords_KeepsRecognizedTruthyFields(t *testing.T) {
	records := []CharacterRecord{
		{
			"name":      "Frodo Baggins",
			"biography": "Ring-bearer",
			"race":      "Hobbit",
			"spouse":    "",
			"height":    nil,
			"death":     0,
			"hair":      false,
			"realm":     []any{},
			"gender":    "Male",
		},
	}

	projected := ProjectRecords(records)
	require.Len(t, projected, 1)
	assert.Equal(t, ProjectedRecord{
		{Name: "race", Value: "Hobbit"},
		{Name: "gender", Value: "Male"},
		{Name: "biography", Value: "Ring-bearer"},
	}, projected[0])
}

func TestProjectRecords_NilAndEmpty(t *testing.T) {
	assert.NotNil(t, ProjectRecords(nil))
	assert.Empty(t, ProjectRecords(nil))

	projected := ProjectRecords([]CharacterRecord{{"name": "Unknown"}})
	require.Len(t, projected, 1)
	assert.Empty(t, projected[0])
}

func TestProjectRecords_IdempotentAndOrdered(t *testing.T) {
	records := []CharacterRecord{
		{"race": "Hobbit", "history": "Shire", "birth": "TA 2968"},
		{"race": "Elf", "realm": "Lothlórien"},
		{"race": "Maia", "hair": "Grey"},
	}

	once := ProjectRecords(records)
	again := make([]CharacterRecord, 0, len(once))
	for _, r := range once {
		again = append(again, r.Map())
	}
	twice := ProjectRecords(again)

	assert.Equal(t, once, twice)
	assert.Equal(t, "Hobbit", once[0][0].Value)
	assert.Equal(t, "Elf", once[1][0].Value)
	assert.Equal(t, "Maia", once[2][0].Value)
	assert.Equal(t, []string{"race", "birth", "history"}, []string{once[0][0].Name, once[0][1].Name, once[0][2].Name})
}

func TestSerializeContext(t *testing.T) {
	empty, err := SerializeContext(ProjectRecords(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	out, err := SerializeContext(ProjectRecords([]CharacterRecord{
		{"gender": "Male", "race": "Hobbit", "biography": "Bearer of <the One Ring> & more"},
	}))
	require.NoError(t, err)
	assert.Equal(t, `[
  {
    "race": "Hobbit",
    "gender": "Male",
    "biography": "Bearer of <the One Ring> & more"
  }
]`, out)
}

func TestRenderUserPrompt_Exact(t *testing.T) {
	out, err := RenderUserPrompt("Context: {retrieved_context}\nQuestion: {user_question}\n", "[]", "Who is Frodo?")
	require.NoError(t, err)
	assert.Equal(t, "Context: []\nQuestion: Who is Frodo?", out)
}

func TestRenderUserPrompt_SinglePass(t *testing.T) {
	out, err := RenderUserPrompt("{user_question} / {retrieved_context}", "[]", "what is {retrieved_context}?")
	require.NoError(t, err)
	assert.Equal(t, "what is {retrieved_context}? / []", out)
}

func TestRenderUserPrompt_PlaceholderErrors(t *testing.T) {
	_, err := RenderUserPrompt("Question: {user_question}", "[]", "q")
	assert.ErrorIs(t, err, ErrTemplateRender)

	_, err = RenderUserPrompt("{retrieved_context} {retrieved_context} {user_question}", "[]", "q")
	assert.ErrorIs(t, err, ErrTemplateRender)
}

func writeTemplates(t *testing.T, dir, system, user string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SystemPromptFile), []byte(system), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, UserPromptFile), []byte(user), 0o644))
}

func TestPromptAssembler_Format(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, "You are a LOTR expert.\n", "Context:\n{retrieved_context}\n\nQuestion: {user_question}\n")

	a := NewPromptAssembler(NewFileTemplateSource(dir), zap.NewNop())
	pair, err := a.Format(context.Background(), "Who is Frodo?", []CharacterRecord{{"race": "Hobbit"}})
	require.NoError(t, err)

	assert.Equal(t, "You are a LOTR expert.\n", pair.System)
	assert.Equal(t, "Context:\n[\n  {\n    \"race\": \"Hobbit\"\n  }\n]\n\nQuestion: Who is Frodo?", pair.User)
}

func TestPromptAssembler_MissingTemplates(t *testing.T) {
	a := NewPromptAssembler(NewFileTemplateSource(t.TempDir()), zap.NewNop())

	_, err := a.Format(context.Background(), "Who is Frodo?", nil)
	assert.ErrorIs(t, err, ErrPromptTemplate)
}
