package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"

	"CreatorStudio-server/models"
)

// 生图批处理的两种全局风格，对应提示词模板 style_realistic / style_illustration
const (
	ImageStyleRealistic    = "realistic"
	ImageStyleIllustration = "illustration"
)

// ImageBatchProgress 批处理进度（供状态推送）
type ImageBatchProgress struct {
	Total   int      `json:"total"`
	Done    int      `json:"done"`
	Failed  []string `json:"failed,omitempty"` // 失败的 frame ID
	Current string   `json:"current,omitempty"`
}

// 批处理取消注册表（projectID -> cancelFunc），停止请求只在帧间生效，
// 已发出的单帧请求不会被强行中断
var batchCancelRegistry = struct {
	sync.RWMutex
	m map[string]context.CancelFunc
}{
	m: make(map[string]context.CancelFunc),
}

func RegisterBatchCancel(projectID string, cancel context.CancelFunc) {
	batchCancelRegistry.Lock()
	defer batchCancelRegistry.Unlock()
	batchCancelRegistry.m[projectID] = cancel
}

func UnregisterBatchCancel(projectID string) {
	batchCancelRegistry.Lock()
	defer batchCancelRegistry.Unlock()
	delete(batchCancelRegistry.m, projectID)
}

// CancelImageBatch 外部调用以停止正在运行的批处理，返回是否实际找到并取消
func CancelImageBatch(projectID string) bool {
	batchCancelRegistry.Lock()
	defer batchCancelRegistry.Unlock()
	if cancel, ok := batchCancelRegistry.m[projectID]; ok {
		cancel()
		delete(batchCancelRegistry.m, projectID)
		return true
	}
	return false
}

// ImageBatcher 分镜图片批量生成器：顺序处理（尊重外部限流），
// 帧间检查取消，单帧失败只记录不中断。
type ImageBatcher struct {
	syncer *Syncer
	store  LocalStore
	gen    Generator
	remote RemoteStore

	mu       sync.Mutex
	running  map[string]bool
	progress map[string]*ImageBatchProgress
}

func NewImageBatcher(syncer *Syncer, store LocalStore, gen Generator, remote RemoteStore) *ImageBatcher {
	return &ImageBatcher{
		syncer:   syncer,
		store:    store,
		gen:      gen,
		remote:   remote,
		running:  map[string]bool{},
		progress: map[string]*ImageBatchProgress{},
	}
}

func (b *ImageBatcher) Running(projectID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running[projectID]
}

func (b *ImageBatcher) Progress(projectID string) *ImageBatchProgress {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.progress[projectID]; ok {
		cp := *p
		cp.Failed = append([]string{}, p.Failed...)
		return &cp
	}
	return nil
}

// Run 对项目的分镜列表执行一轮批量生图：跳过已有 imageUrl 或被标记
// skipGeneration 的帧，其余按顺序逐帧生成。ctx 取消后不再开始新帧，
// 进度标记立即清除，未处理的帧保持原状。
func (b *ImageBatcher) Run(ctx context.Context, projectID, style string) error {
	styleKey, err := styleTemplateKey(style)
	if err != nil {
		return err
	}

	p, err := b.store.GetProject(projectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if p.Status == models.ProjectStatusArchived {
		return ErrProjectArchived
	}

	pending := models.PendingFrames(p.Storyboard)
	if len(pending) == 0 {
		return ErrNothingToDo
	}

	b.mu.Lock()
	if b.running[projectID] {
		b.mu.Unlock()
		return ErrBatchRunning
	}
	b.running[projectID] = true
	b.progress[projectID] = &ImageBatchProgress{Total: len(pending)}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.running, projectID)
		b.mu.Unlock()
	}()

	overrides, oerr := b.store.GetPrompts()
	if oerr != nil {
		log.Printf("[Images] 读取模板覆盖失败，使用默认模板: %v", oerr)
		overrides = nil
	}
	styleTpl := models.MergePrompts(overrides)[styleKey]

	for _, frame := range pending {
		select {
		case <-ctx.Done():
			log.Printf("[Images] 批处理被停止，剩余帧保持原状: project=%s", projectID)
			b.setProgress(projectID, func(pr *ImageBatchProgress) { pr.Current = "" })
			return nil
		default:
		}

		b.setProgress(projectID, func(pr *ImageBatchProgress) { pr.Current = frame.ID })
		if err := b.generateFrame(ctx, projectID, frame, styleTpl); err != nil {
			log.Printf("[Images] 分镜 %s 生图失败: %v", frame.ID, err)
			b.setProgress(projectID, func(pr *ImageBatchProgress) {
				pr.Failed = append(pr.Failed, frame.ID)
			})
			continue
		}
		b.setProgress(projectID, func(pr *ImageBatchProgress) { pr.Done++ })
	}
	b.setProgress(projectID, func(pr *ImageBatchProgress) { pr.Current = "" })
	return nil
}

// generateFrame 单帧流程：风格模板替换 -> 生图 -> 依次尝试
// 网关图床 / MinIO / 内联 data URL 三级存储 -> 写回 imageUrl 与来源标记
func (b *ImageBatcher) generateFrame(ctx context.Context, projectID string, frame models.Frame, styleTpl string) error {
	imagePrompt := frame.ImagePrompt
	if imagePrompt == "" {
		imagePrompt = frame.Description
	}
	prompt := models.Interpolate(styleTpl, map[string]string{"imagePrompt": imagePrompt})

	data, err := b.gen.GenerateImage(ctx, prompt)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("projects/%s/frames/%s.png", projectID, frame.ID)
	imageURL, err := b.remote.PutImage(ctx, key, data)
	if err != nil {
		log.Printf("[Images] 网关图床上传失败，尝试 MinIO: %v", err)
		imageURL, err = UploadImage(ctx, data, key)
	}
	if err != nil {
		log.Printf("[Images] MinIO 上传失败，改为内联存储: %v", err)
		imageURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	}

	model := b.gen.ImageModel()
	_, err = b.syncer.PushLocalChange(ctx, projectID, func(p *models.Project) error {
		for i := range p.Storyboard {
			if p.Storyboard[i].ID == frame.ID {
				p.Storyboard[i].ImageUrl = imageURL
				p.Storyboard[i].ImageModel = model
				return nil
			}
		}
		return fmt.Errorf("分镜 %s 已不存在", frame.ID)
	})
	return err
}

func (b *ImageBatcher) setProgress(projectID string, apply func(*ImageBatchProgress)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pr, ok := b.progress[projectID]; ok {
		apply(pr)
	}
}

func styleTemplateKey(style string) (string, error) {
	switch style {
	case ImageStyleRealistic, "":
		return models.PromptStyleRealistic, nil
	case ImageStyleIllustration:
		return models.PromptStyleIllustration, nil
	}
	return "", fmt.Errorf("未知的生图风格: %s", style)
}
