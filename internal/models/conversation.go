package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 消息反馈取值
const (
	FeedbackGood = "GOOD"
	FeedbackBad  = "BAD"
)

// Conversation 对话表
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate 未指定ID时生成UUID
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Message 一问一答记录，按created_at排序
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;column:conversation_id;not null;index" json:"-"`
	Question       string    `gorm:"type:text;not null" json:"question"`
	Answer         string    `gorm:"type:text;not null" json:"answer"`
	Feedback       *string   `gorm:"column:feedback;size:4" json:"feedback"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ValidFeedback reports whether value is an accepted feedback annotation.
func ValidFeedback(value string) bool {
	return value == FeedbackGood || value == FeedbackBad
}
