package models

import (
	"strconv"
	"strings"
)

// 提示词模板键。节点模板按节点 ID 存取；另有两个生图风格模板。
const (
	PromptStyleRealistic    = "style_realistic"
	PromptStyleIllustration = "style_illustration"
)

// DefaultPrompts 系统默认提示词模板，占位符形如 {{topic}}。
// 持久化的自定义模板只会覆盖同名键，缺失的键始终回落到这里（默认在下、覆盖在上）。
var DefaultPrompts = map[string]string{
	NodeScript: "你是一名长视频内容策划。请围绕主题「{{topic}}」撰写一篇完整的口播脚本。\n" +
		"核心观点：{{corePoint}}\n目标受众：{{audience}}\n目标时长：{{duration}} 分钟\n" +
		"语气风格：{{tone}}\n输出语言：{{language}}\n" +
		"要求结构完整（开场钩子、主体论述、结尾引导），直接输出脚本正文，不要附加说明。",

	NodeTitles: "基于以下视频脚本，为视频「{{title}}」生成 8 个候选标题。\n" +
		"每个标题给出吸引力评分（0-10）和命中的关键词。语言：{{language}}。\n脚本：\n{{script}}",

	NodeStoryboard: "将以下脚本拆分为分镜列表，每个分镜包含：原文片段、画面描述、生图提示词。\n" +
		"分镜数量依脚本内容自然划分，按叙述顺序输出。语气：{{tone}}。\n脚本：\n{{script}}",

	NodeSummary: "用不超过 200 字总结以下视频脚本的核心内容，供视频简介使用。语言：{{language}}。\n脚本：\n{{script}}",

	NodeCover: "基于脚本为视频「{{title}}」设计 6 组封面方案（方案 A 风格：大字报强对比）。\n" +
		"每组包含画面视觉描述（visual）、封面文案（copy）、推荐评分（score 0-10）。\n脚本：\n{{script}}",

	NodeCoverB: "基于脚本为视频「{{title}}」设计 6 组封面方案（方案 B 风格：留白极简）。\n" +
		"每组包含画面视觉描述（visual）、封面文案（copy）、推荐评分（score 0-10）。\n脚本：\n{{script}}",

	NodeCoverBg: "为视频「{{title}}」的封面底图生成 4 组左右分区的生图提示词。\n" +
		"每组包含左半区提示词（leftPrompt）、右半区提示词（rightPrompt）、评分（score 0-10）。\n" +
		"主题：{{topic}}，语气：{{tone}}。",

	PromptStyleRealistic: "电影感实拍风格，自然光效，细节丰富，16:9 画幅。画面内容：{{imagePrompt}}",

	PromptStyleIllustration: "扁平插画风格，明快配色，简洁构图，16:9 画幅。画面内容：{{imagePrompt}}",
}

// MergePrompts 合并默认模板与持久化覆盖：覆盖项生效，缺失键保留默认。
// 返回全新 map，不会修改入参。
func MergePrompts(overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(DefaultPrompts))
	for k, v := range DefaultPrompts {
		merged[k] = v
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) == "" {
			continue
		}
		merged[k] = v
	}
	return merged
}

// Interpolate 将 {{key}} 占位符替换为 vars 中的值，未知占位符原样保留
func Interpolate(tpl string, vars map[string]string) string {
	out := tpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

// PromptVars 从项目字段构造插值变量表
func PromptVars(p *Project) map[string]string {
	return map[string]string{
		"topic":     p.Inputs.Topic,
		"corePoint": p.Inputs.CorePoint,
		"audience":  p.Inputs.Audience,
		"duration":  strconv.Itoa(p.Inputs.Duration),
		"tone":      p.Inputs.Tone,
		"language":  p.Inputs.Language,
		"title":     p.Title,
		"script":    p.Script,
	}
}
