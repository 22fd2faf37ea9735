package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"CreatorStudio-server/models"
)

// GatewayClient 远端存储网关（serverless 函数）的 HTTP 客户端。
// 所有端点失败时返回统一错误体 {"error": "..."}，调用方不区分失败种类。
type GatewayClient struct {
	base string
	http *http.Client
}

func NewGatewayClient(base string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Snapshot 整库快照（POST/GET /sync），用于全量备份，与逐实体端点互不影响
type Snapshot struct {
	Projects     []models.Project     `json:"projects"`
	Inspirations []models.Inspiration `json:"inspirations"`
	Prompts      map[string]string    `json:"prompts"`
}

func (g *GatewayClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewBuffer(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var respData struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&respData)
		return fmt.Errorf("gateway status %d: %s", resp.StatusCode, respData.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response failed: %w", err)
		}
	}
	return nil
}

func (g *GatewayClient) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := g.do(ctx, http.MethodGet, "/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GatewayClient) FetchProject(ctx context.Context, id string) (*models.Project, error) {
	var out models.Project
	if err := g.do(ctx, http.MethodGet, "/projects/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *GatewayClient) PushProject(ctx context.Context, p *models.Project) error {
	return g.do(ctx, http.MethodPut, "/projects/"+p.ID, p, nil)
}

func (g *GatewayClient) DeleteProject(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/projects/"+id, nil, nil)
}

func (g *GatewayClient) FetchPrompts(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	if err := g.do(ctx, http.MethodGet, "/prompts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GatewayClient) PushPrompts(ctx context.Context, prompts map[string]string) error {
	return g.do(ctx, http.MethodPut, "/prompts", prompts, nil)
}

func (g *GatewayClient) FetchInspirations(ctx context.Context) ([]models.Inspiration, error) {
	var out []models.Inspiration
	if err := g.do(ctx, http.MethodGet, "/inspirations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GatewayClient) PushInspirations(ctx context.Context, list []models.Inspiration) error {
	return g.do(ctx, http.MethodPut, "/inspirations", list, nil)
}

// PutImage 上传二进制图片，返回可访问 URL
func (g *GatewayClient) PutImage(ctx context.Context, key string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.base+"/images/"+key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var respData struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&respData)
		return "", fmt.Errorf("gateway status %d: %s", resp.StatusCode, respData.Error)
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response failed: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("response missing 'url'")
	}
	return out.URL, nil
}

func (g *GatewayClient) GetImage(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+"/images/"+key, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (g *GatewayClient) PushSnapshot(ctx context.Context, snap *Snapshot) error {
	return g.do(ctx, http.MethodPost, "/sync", snap, nil)
}

func (g *GatewayClient) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var out Snapshot
	if err := g.do(ctx, http.MethodGet, "/sync", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
