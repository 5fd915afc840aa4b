package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/aihub/lotr-chat/internal/logger"
	"go.uber.org/zap"
)

// CharacterFields 上下文中保留的角色字段，顺序即输出顺序
var CharacterFields = []string{
	"race",
	"gender",
	"realm",
	"culture",
	"birth",
	"death",
	"spouse",
	"hair",
	"height",
	"biography",
	"history",
}

const (
	contextPlaceholder  = "{retrieved_context}"
	questionPlaceholder = "{user_question}"
)

// PromptPair 发送给模型的一组提示词
type PromptPair struct {
	System string
	User   string
}

// Field is one kept key/value of a projected record.
type Field struct {
	Name  string
	Value any
}

// ProjectedRecord keeps the recognized fields of a record in CharacterFields order.
type ProjectedRecord []Field

// Map converts the projection back to a plain record.
func (r ProjectedRecord) Map() CharacterRecord {
	record := make(CharacterRecord, len(r))
	for _, f := range r {
		record[f.Name] = f.Value
	}
	return record
}

func (r ProjectedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := marshalNoEscape(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ProjectRecords keeps only recognized fields with truthy values. Record order and
// field order are preserved; a nil input yields an empty, non-nil slice.
func ProjectRecords(records []CharacterRecord) []ProjectedRecord {
	projected := make([]ProjectedRecord, 0, len(records))
	for _, record := range records {
		kept := ProjectedRecord{}
		for _, name := range CharacterFields {
			value, ok := record[name]
			if !ok || !truthy(value) {
				continue
			}
			kept = append(kept, Field{Name: name, Value: value})
		}
		projected = append(projected, kept)
	}
	return projected
}

// truthy 判断字段值是否有效：nil、空串、0、false、空集合都视为缺失
func truthy(value any) bool {
	if value == nil {
		return false
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() > 0
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return !v.IsZero()
	case reflect.Pointer, reflect.Interface:
		return !v.IsNil()
	default:
		return true
	}
}

// SerializeContext renders projected records as a JSON array indented with two
// spaces. An empty set renders as "[]".
func SerializeContext(records []ProjectedRecord) (string, error) {
	if len(records) == 0 {
		return "[]", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return "", fmt.Errorf("%w: serialize context: %v", ErrTemplateRender, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// RenderUserPrompt substitutes both placeholders in a single pass, so substituted
// text is never scanned again. Each placeholder must appear exactly once.
func RenderUserPrompt(template, retrievedContext, question string) (string, error) {
	for _, placeholder := range []string{contextPlaceholder, questionPlaceholder} {
		switch n := strings.Count(template, placeholder); {
		case n == 0:
			return "", fmt.Errorf("%w: placeholder %s missing", ErrTemplateRender, placeholder)
		case n > 1:
			return "", fmt.Errorf("%w: placeholder %s appears %d times", ErrTemplateRender, placeholder, n)
		}
	}

	replacer := strings.NewReplacer(
		contextPlaceholder, retrievedContext,
		questionPlaceholder, question,
	)
	return strings.TrimSpace(replacer.Replace(template)), nil
}

// PromptAssembler 将检索结果与模板组装为提示词
type PromptAssembler struct {
	source TemplateSource
	logger *zap.Logger
}

func NewPromptAssembler(source TemplateSource, log *zap.Logger) *PromptAssembler {
	if log == nil {
		log = logger.Named("prompt")
	}
	return &PromptAssembler{source: source, logger: log}
}

// Format builds the (system, user) prompt pair for query from the retrieved records.
func (a *PromptAssembler) Format(ctx context.Context, query string, records []CharacterRecord) (PromptPair, error) {
	retrievedContext, err := SerializeContext(ProjectRecords(records))
	if err != nil {
		return PromptPair{}, err
	}

	templates, err := a.source.Load(ctx)
	if err != nil {
		return PromptPair{}, err
	}

	user, err := RenderUserPrompt(templates.User, retrievedContext, query)
	if err != nil {
		return PromptPair{}, err
	}

	a.logger.Debug("prompt assembled",
		zap.Int("records", len(records)),
		zap.Int("user_prompt_len", len(user)))

	return PromptPair{System: templates.System, User: user}, nil
}
