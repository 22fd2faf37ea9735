package service

import (
	"context"
	"encoding/json"
	"fmt"

	"CreatorStudio-server/config"
	"CreatorStudio-server/models"

	"google.golang.org/genai"
)

// GenAIClient 基于 Google GenAI 的生成客户端，实现 Generator。
// 三种能力都是一次性请求/响应，重试策略由上层编排器决定。
type GenAIClient struct {
	client     *genai.Client
	textModel  string
	imageModel string
}

func NewGenAIClient(ctx context.Context) (*GenAIClient, error) {
	cfg := config.AppConfig.GenAI
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIClient{
		client:     client,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
	}, nil
}

func (g *GenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.textModel,
		genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("文本生成失败: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("文本生成返回为空")
	}
	return text, nil
}

// GenerateJSON 按节点对应的 schema 约束输出，并把结果反序列化到 out。
// 模型输出无法解析或不满足 schema 时视为生成失败。
func (g *GenAIClient) GenerateJSON(ctx context.Context, prompt string, node string, out interface{}) error {
	schema, ok := nodeSchemas[node]
	if !ok {
		return fmt.Errorf("节点 %s 没有结构化 schema", node)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.textModel,
		genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		})
	if err != nil {
		return fmt.Errorf("结构化生成失败: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return fmt.Errorf("结构化生成返回为空")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("结构化结果解析失败: %w", err)
	}
	return nil
}

func (g *GenAIClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt,
		&genai.GenerateImagesConfig{NumberOfImages: 1})
	if err != nil {
		return nil, fmt.Errorf("图片生成失败: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("图片生成返回为空")
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}

func (g *GenAIClient) ImageModel() string {
	return g.imageModel
}

func scoredSchema(props map[string]*genai.Schema, required []string) *genai.Schema {
	props["score"] = &genai.Schema{Type: genai.TypeNumber}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   append(required, "score"),
		},
	}
}

// 各结构化节点的输出 schema（数组元素形状与 models 中的候选类型一一对应）
var nodeSchemas = map[string]*genai.Schema{
	models.NodeTitles: scoredSchema(map[string]*genai.Schema{
		"title":    {Type: genai.TypeString},
		"keywords": {Type: genai.TypeString},
	}, []string{"title", "keywords"}),

	models.NodeStoryboard: {
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"originalText": {Type: genai.TypeString},
				"description":  {Type: genai.TypeString},
				"imagePrompt":  {Type: genai.TypeString},
			},
			Required: []string{"originalText", "description"},
		},
	},

	models.NodeCover: scoredSchema(map[string]*genai.Schema{
		"visual": {Type: genai.TypeString},
		"copy":   {Type: genai.TypeString},
	}, []string{"visual", "copy"}),

	models.NodeCoverB: scoredSchema(map[string]*genai.Schema{
		"visual": {Type: genai.TypeString},
		"copy":   {Type: genai.TypeString},
	}, []string{"visual", "copy"}),

	models.NodeCoverBg: scoredSchema(map[string]*genai.Schema{
		"leftPrompt":  {Type: genai.TypeString},
		"rightPrompt": {Type: genai.TypeString},
	}, []string{"leftPrompt", "rightPrompt"}),
}
