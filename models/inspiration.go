package models

import "strings"

// Inspiration 灵感条目，独立于项目的 CRUD 实体。
// “采纳”灵感会以其内容创建一个新项目，但不会修改或删除灵感本身。
type Inspiration struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Category  string `json:"category"`
	Content   string `json:"content"`
	Title     string `json:"title"`
	Rating    int    `json:"rating"`
	Marked    bool   `json:"marked"`
	CreatedAt int64  `json:"createdAt"`
}

func (Inspiration) TableName() string {
	return "inspiration"
}

// DeriveInspirationTitle 从内容派生展示标题：取首行，超过 20 字截断
func DeriveInspirationTitle(content string) string {
	line := strings.TrimSpace(content)
	if idx := strings.IndexAny(line, "\r\n"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	runes := []rune(line)
	if len(runes) > 20 {
		return string(runes[:20]) + "…"
	}
	return line
}
