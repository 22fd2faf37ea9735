package service

import (
	"context"
	"errors"

	"CreatorStudio-server/models"
)

// 编排层统一的业务错误（网络类错误不在此列，见各编排器的状态标记）
var (
	ErrNotFound          = errors.New("project not found")
	ErrProjectArchived   = errors.New("project archived")
	ErrMissingDependency = errors.New("script not generated yet")
	ErrNothingToDo       = errors.New("all nodes already generated")
	ErrBatchRunning      = errors.New("batch already running")
)

// LocalStore 本地库的最小接口，由 models.Store 实现；测试用内存实现。
// 写入是全量覆盖，不重新打时间戳（时间戳语义归编排器所有）。
type LocalStore interface {
	GetProject(id string) (*models.Project, error)
	SaveProject(p *models.Project) error
	ListProjects() ([]models.Project, error)
	DeleteProject(id string) error
	GetPrompts() (map[string]string, error)
	SavePrompts(overrides map[string]string) error
	ListInspirations() ([]models.Inspiration, error)
	GetInspiration(id string) (*models.Inspiration, error)
	SaveInspiration(insp *models.Inspiration) error
	DeleteInspiration(id string) error
}

// RemoteStore 远端网关中编排器用到的子集，由 *GatewayClient 实现。
// 所有失败对调用方都是同一类：瞬态、可在下个同步周期重试。
type RemoteStore interface {
	FetchProject(ctx context.Context, id string) (*models.Project, error)
	PushProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	PutImage(ctx context.Context, key string, data []byte) (string, error)
}

// Generator 生成能力：单次请求/响应，无流式、无内建重试
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, node string, out interface{}) error
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	ImageModel() string
}
