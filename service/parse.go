package service

import (
	"regexp"
	"strconv"
	"strings"
)

// InspirationDraft 批量导入解析出的灵感候选
type InspirationDraft struct {
	Category string
	Content  string
	Rating   int
}

var numberedLine = regexp.MustCompile(`^\s*\d+[.、)）]\s*(.+)$`)

// ParseBulkImport 解析用户粘贴的批量灵感文本，依次尝试三种策略：
//  1. 表格行：每行 "分类<TAB>内容[<TAB>评分]"（也接受 | 分隔）
//  2. 编号列表：每行 "1. 内容" / "2、内容"
//  3. 空行分段：每个空行分隔的段落作为一条内容
//
// 无法解析时返回 nil。
func ParseBulkImport(rawText string) []InspirationDraft {
	text := strings.ReplaceAll(rawText, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if drafts := parseTabular(text); len(drafts) > 0 {
		return drafts
	}
	if drafts := parseNumbered(text); len(drafts) > 0 {
		return drafts
	}
	return parseBlocks(text)
}

func parseTabular(text string) []InspirationDraft {
	var drafts []InspirationDraft
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sep := "\t"
		if !strings.Contains(line, "\t") {
			if !strings.Contains(line, "|") {
				return nil // 任意一行不含分隔符就放弃表格策略
			}
			sep = "|"
		}
		parts := strings.Split(line, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 2 || parts[1] == "" {
			return nil
		}
		draft := InspirationDraft{Category: parts[0], Content: parts[1]}
		if len(parts) >= 3 {
			if rating, err := strconv.Atoi(parts[2]); err == nil {
				draft.Rating = rating
			}
		}
		drafts = append(drafts, draft)
	}
	return drafts
}

func parseNumbered(text string) []InspirationDraft {
	var drafts []InspirationDraft
	matched := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			return nil // 混有非编号行则放弃该策略
		}
		matched++
		drafts = append(drafts, InspirationDraft{Content: strings.TrimSpace(m[1])})
	}
	if matched < 2 {
		return nil
	}
	return drafts
}

func parseBlocks(text string) []InspirationDraft {
	var drafts []InspirationDraft
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		drafts = append(drafts, InspirationDraft{Content: block})
	}
	if len(drafts) == 0 {
		return nil
	}
	return drafts
}
