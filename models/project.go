package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// 项目状态常量（ARCHIVED 为终态，进入后禁止一切变更）
const (
	ProjectStatusDraft      = "DRAFT"       // 草稿：尚未生成脚本
	ProjectStatusInProgress = "IN_PROGRESS" // 进行中：脚本已生成
	ProjectStatusCompleted  = "COMPLETED"   // 已完成
	ProjectStatusArchived   = "ARCHIVED"    // 已归档（只读）
)

// 生成节点 ID。script 是唯一的前置节点，其余六个节点均依赖非空脚本。
const (
	NodeScript     = "script"
	NodeTitles     = "titles"
	NodeStoryboard = "sb_text"
	NodeSummary    = "summary"
	NodeCover      = "cover"
	NodeCoverB     = "cover_b"
	NodeCoverBg    = "cover_bg"
)

// DownstreamNodes 依赖脚本的六个下游节点（批量生成按此顺序筛选目标）
var DownstreamNodes = []string{
	NodeTitles, NodeStoryboard, NodeSummary, NodeCover, NodeCoverB, NodeCoverBg,
}

// IsNode 判断是否为合法节点 ID
func IsNode(id string) bool {
	if id == NodeScript {
		return true
	}
	for _, n := range DownstreamNodes {
		if n == id {
			return true
		}
	}
	return false
}

// ProjectInputs 选题输入（创建后基本不变的种子数据）
type ProjectInputs struct {
	Topic     string `json:"topic"`
	CorePoint string `json:"corePoint"`
	Audience  string `json:"audience"`
	Duration  int    `json:"duration"`
	Tone      string `json:"tone"`
	Language  string `json:"language"`
}

// TitleOption 标题候选
type TitleOption struct {
	Title    string  `json:"title"`
	Keywords string  `json:"keywords"`
	Score    float64 `json:"score"`
}

// Frame 分镜条目，ImageUrl 非空即视为图片已完成，批量生图不会再覆盖
type Frame struct {
	ID             string `json:"id"`
	SceneNumber    int    `json:"sceneNumber"`
	OriginalText   string `json:"originalText"`
	Description    string `json:"description"`
	ImagePrompt    string `json:"imagePrompt"`
	ImageUrl       string `json:"imageUrl,omitempty"`
	SkipGeneration bool   `json:"skipGeneration,omitempty"`
	ImageModel     string `json:"imageModel,omitempty"`
}

// CoverOption 封面文案候选
type CoverOption struct {
	Visual string  `json:"visual"`
	Copy   string  `json:"copy"`
	Score  float64 `json:"score"`
}

// CoverBgOption 封面底图（左右分区）提示词候选
type CoverBgOption struct {
	LeftPrompt  string  `json:"leftPrompt"`
	RightPrompt string  `json:"rightPrompt"`
	Score       float64 `json:"score"`
}

type TitleList []TitleOption
type FrameList []Frame
type CoverList []CoverOption
type CoverBgList []CoverBgOption

// ModuleTimestamps 节点 ID -> 最近一次生成时间（毫秒），仅用于展示
type ModuleTimestamps map[string]int64

type Project struct {
	ID               string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title            string           `json:"title"`
	Status           string           `json:"status"`
	Inputs           ProjectInputs    `gorm:"type:json" json:"inputs"`
	Script           string           `json:"script"`
	Titles           TitleList        `gorm:"type:json" json:"titles"`
	Storyboard       FrameList        `gorm:"type:json" json:"storyboard"`
	Summary          string           `json:"summary"`
	CoverOptions     CoverList        `gorm:"type:json" json:"coverOptions"`
	CoverOptionsB    CoverList        `gorm:"type:json" json:"coverOptionsB"`
	CoverBgOptions   CoverBgList      `gorm:"type:json" json:"coverBgOptions"`
	CoverBgText      string           `json:"coverBgText"`
	ModuleTimestamps ModuleTimestamps `gorm:"type:json" json:"moduleTimestamps"`
	CreatedAt        int64            `json:"createdAt"`
	UpdatedAt        int64            `json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}

// NowMilli 墙钟毫秒，UpdatedAt / ModuleTimestamps 统一用这个精度
func NowMilli() int64 {
	return time.Now().UnixMilli()
}

// NewProject 生成一个空白草稿项目（时间戳由调用方通过 Syncer 落库时补齐）
func NewProject(id, title string, inputs ProjectInputs) *Project {
	now := NowMilli()
	return &Project{
		ID:               id,
		Title:            title,
		Status:           ProjectStatusDraft,
		Inputs:           inputs,
		Titles:           TitleList{},
		Storyboard:       FrameList{},
		CoverOptions:     CoverList{},
		CoverOptionsB:    CoverList{},
		CoverBgOptions:   CoverBgList{},
		ModuleTimestamps: ModuleTimestamps{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone 深拷贝，供“读取-应用-写回”更新器使用，避免在旧快照上原地修改
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Titles = append(TitleList{}, p.Titles...)
	cp.Storyboard = append(FrameList{}, p.Storyboard...)
	cp.CoverOptions = append(CoverList{}, p.CoverOptions...)
	cp.CoverOptionsB = append(CoverList{}, p.CoverOptionsB...)
	cp.CoverBgOptions = append(CoverBgList{}, p.CoverBgOptions...)
	cp.ModuleTimestamps = ModuleTimestamps{}
	for k, v := range p.ModuleTimestamps {
		cp.ModuleTimestamps[k] = v
	}
	return &cp
}

// NodeEmpty 节点产出是否为空。cover_bg 需结构化列表与旧版自由文本同时为空才算空。
func NodeEmpty(p *Project, node string) bool {
	switch node {
	case NodeScript:
		return strings.TrimSpace(p.Script) == ""
	case NodeTitles:
		return len(p.Titles) == 0
	case NodeStoryboard:
		return len(p.Storyboard) == 0
	case NodeSummary:
		return strings.TrimSpace(p.Summary) == ""
	case NodeCover:
		return len(p.CoverOptions) == 0
	case NodeCoverB:
		return len(p.CoverOptionsB) == 0
	case NodeCoverBg:
		return len(p.CoverBgOptions) == 0 && strings.TrimSpace(p.CoverBgText) == ""
	}
	return false
}

// EmptyDownstreamNodes 返回所有产出为空的下游节点（批量生成的目标集合）
func EmptyDownstreamNodes(p *Project) []string {
	var out []string
	for _, n := range DownstreamNodes {
		if NodeEmpty(p, n) {
			out = append(out, n)
		}
	}
	return out
}

// PendingFrames 待生图的分镜：未跳过且没有 imageUrl
func PendingFrames(frames FrameList) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.SkipGeneration || f.ImageUrl != "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ---------------------------------------------------------------------------
// JSON 列的 driver.Valuer / sql.Scanner 实现（Go Struct <-> JSON String）
// ---------------------------------------------------------------------------

func scanJSON(value interface{}, out interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
		}
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, out)
}

func (i ProjectInputs) Value() (driver.Value, error) { return json.Marshal(i) }
func (i *ProjectInputs) Scan(value interface{}) error {
	return scanJSON(value, i)
}

func (t TitleList) Value() (driver.Value, error) {
	if t == nil {
		t = TitleList{}
	}
	return json.Marshal(t)
}
func (t *TitleList) Scan(value interface{}) error { return scanJSON(value, t) }

func (f FrameList) Value() (driver.Value, error) {
	if f == nil {
		f = FrameList{}
	}
	return json.Marshal(f)
}
func (f *FrameList) Scan(value interface{}) error { return scanJSON(value, f) }

func (c CoverList) Value() (driver.Value, error) {
	if c == nil {
		c = CoverList{}
	}
	return json.Marshal(c)
}
func (c *CoverList) Scan(value interface{}) error { return scanJSON(value, c) }

func (c CoverBgList) Value() (driver.Value, error) {
	if c == nil {
		c = CoverBgList{}
	}
	return json.Marshal(c)
}
func (c *CoverBgList) Scan(value interface{}) error { return scanJSON(value, c) }

func (m ModuleTimestamps) Value() (driver.Value, error) {
	if m == nil {
		m = ModuleTimestamps{}
	}
	return json.Marshal(m)
}
func (m *ModuleTimestamps) Scan(value interface{}) error { return scanJSON(value, m) }
