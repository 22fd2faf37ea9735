package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"CreatorStudio-server/models"

	"github.com/google/uuid"
)

// NodeOrchestrator 驱动固定依赖图上的内容生成：script 是唯一前置节点，
// 六个下游节点（titles / sb_text / summary / cover / cover_b / cover_bg）
// 都要求脚本非空。批量生成并发执行、每个节点最多重试一次、互不阻塞。
type NodeOrchestrator struct {
	syncer *Syncer
	store  LocalStore
	gen    Generator

	retryDelay time.Duration
	now        func() int64

	mu         sync.Mutex
	generating map[string]map[string]bool // projectID -> nodeID -> 生成中
	failed     map[string]map[string]bool // projectID -> nodeID -> 上次失败
	batch      map[string]bool            // projectID -> 批量运行中
}

func NewNodeOrchestrator(syncer *Syncer, store LocalStore, gen Generator, retryDelay time.Duration) *NodeOrchestrator {
	return &NodeOrchestrator{
		syncer:     syncer,
		store:      store,
		gen:        gen,
		retryDelay: retryDelay,
		now:        models.NowMilli,
		generating: map[string]map[string]bool{},
		failed:     map[string]map[string]bool{},
		batch:      map[string]bool{},
	}
}

// begin 占住节点的“生成中”标记；已占用返回 false
func (n *NodeOrchestrator) begin(projectID, node string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.generating[projectID]
	if !ok {
		set = map[string]bool{}
		n.generating[projectID] = set
	}
	if set[node] {
		return false
	}
	set[node] = true
	return true
}

func (n *NodeOrchestrator) end(projectID, node string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if set, ok := n.generating[projectID]; ok {
		delete(set, node)
	}
}

func (n *NodeOrchestrator) setFailed(projectID, node string, failed bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.failed[projectID]
	if !ok {
		set = map[string]bool{}
		n.failed[projectID] = set
	}
	if failed {
		set[node] = true
	} else {
		delete(set, node)
	}
}

// GeneratingNodes / FailedNodes / BatchRunning 供状态推送使用
func (n *NodeOrchestrator) GeneratingNodes(projectID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return nodeSet(n.generating[projectID])
}

func (n *NodeOrchestrator) FailedNodes(projectID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return nodeSet(n.failed[projectID])
}

func (n *NodeOrchestrator) BatchRunning(projectID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.batch[projectID]
}

func nodeSet(m map[string]bool) []string {
	var out []string
	for _, node := range append([]string{models.NodeScript}, models.DownstreamNodes...) {
		if m[node] {
			out = append(out, node)
		}
	}
	return out
}

// GenerateOne 单节点生成。同节点重复触发是幂等空操作；
// 下游节点在脚本缺失时直接拒绝，不发起任何网络调用。
func (n *NodeOrchestrator) GenerateOne(ctx context.Context, projectID, node string) error {
	if !models.IsNode(node) {
		return fmt.Errorf("unknown node: %s", node)
	}
	p, err := n.load(projectID)
	if err != nil {
		return err
	}
	if p.Status == models.ProjectStatusArchived {
		return ErrProjectArchived
	}
	if node != models.NodeScript && models.NodeEmpty(p, models.NodeScript) {
		return ErrMissingDependency
	}
	if !n.begin(projectID, node) {
		return nil
	}
	defer n.end(projectID, node)

	if err := n.generate(ctx, projectID, node); err != nil {
		n.setFailed(projectID, node, true)
		return err
	}
	n.setFailed(projectID, node, false)
	return nil
}

// RunAll 一键批量：只生成当前为空的下游节点，全部目标先标记“生成中”
// 再发起调用；每个目标失败后等待固定延迟重试一次；单点失败不影响其余。
// 全部目标（含各自的重试）落定后才清除批量标记。
func (n *NodeOrchestrator) RunAll(ctx context.Context, projectID string) error {
	p, err := n.load(projectID)
	if err != nil {
		return err
	}
	if p.Status == models.ProjectStatusArchived {
		return ErrProjectArchived
	}
	if models.NodeEmpty(p, models.NodeScript) {
		return ErrMissingDependency
	}

	targets := models.EmptyDownstreamNodes(p)
	if len(targets) == 0 {
		return ErrNothingToDo
	}

	n.mu.Lock()
	if n.batch[projectID] {
		n.mu.Unlock()
		return ErrBatchRunning
	}
	n.batch[projectID] = true
	n.mu.Unlock()

	// 先占满所有目标的“生成中”标记，已被单点触发占用的跳过
	var claimed []string
	for _, node := range targets {
		if n.begin(projectID, node) {
			claimed = append(claimed, node)
		}
	}

	var wg sync.WaitGroup
	for _, node := range claimed {
		wg.Add(1)
		go func(node string) {
			defer wg.Done()
			defer n.end(projectID, node)

			err := n.generate(ctx, projectID, node)
			if err != nil {
				log.Printf("[Nodes] 节点 %s 首次生成失败，%v 后重试: %v", node, n.retryDelay, err)
				time.Sleep(n.retryDelay)
				err = n.generate(ctx, projectID, node)
			}
			if err != nil {
				log.Printf("[Nodes] 节点 %s 重试仍失败: %v", node, err)
				n.setFailed(projectID, node, true)
				return
			}
			n.setFailed(projectID, node, false)
		}(node)
	}
	wg.Wait()

	n.mu.Lock()
	delete(n.batch, projectID)
	n.mu.Unlock()
	return nil
}

// ResetNode 清空节点产出与时间戳、清除失败标记；归档项目拒绝
func (n *NodeOrchestrator) ResetNode(ctx context.Context, projectID, node string) error {
	if !models.IsNode(node) {
		return fmt.Errorf("unknown node: %s", node)
	}
	_, err := n.syncer.PushLocalChange(ctx, projectID, func(p *models.Project) error {
		switch node {
		case models.NodeScript:
			p.Script = ""
		case models.NodeTitles:
			p.Titles = models.TitleList{}
		case models.NodeStoryboard:
			p.Storyboard = models.FrameList{}
		case models.NodeSummary:
			p.Summary = ""
		case models.NodeCover:
			p.CoverOptions = models.CoverList{}
		case models.NodeCoverB:
			p.CoverOptionsB = models.CoverList{}
		case models.NodeCoverBg:
			p.CoverBgOptions = models.CoverBgList{}
			p.CoverBgText = ""
		}
		delete(p.ModuleTimestamps, node)
		return nil
	})
	if err != nil {
		return err
	}
	n.setFailed(projectID, node, false)
	return nil
}

func (n *NodeOrchestrator) load(projectID string) (*models.Project, error) {
	p, err := n.store.GetProject(projectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// generate 单次生成尝试：插值模板 -> 调用生成客户端 -> 通过更新器合并结果。
// 每次尝试都重新读最新项目状态做插值，合并也作用在最新状态上。
func (n *NodeOrchestrator) generate(ctx context.Context, projectID, node string) error {
	p, err := n.load(projectID)
	if err != nil {
		return err
	}
	prompt, err := n.renderPrompt(p, node)
	if err != nil {
		return err
	}

	var mutate func(*models.Project) error
	switch node {
	case models.NodeScript:
		text, err := n.gen.GenerateText(ctx, prompt)
		if err != nil {
			return err
		}
		mutate = func(p *models.Project) error {
			p.Script = text
			if p.Status == models.ProjectStatusDraft {
				p.Status = models.ProjectStatusInProgress
			}
			return nil
		}

	case models.NodeSummary:
		text, err := n.gen.GenerateText(ctx, prompt)
		if err != nil {
			return err
		}
		mutate = func(p *models.Project) error {
			p.Summary = text
			return nil
		}

	case models.NodeTitles:
		var titles models.TitleList
		if err := n.gen.GenerateJSON(ctx, prompt, node, &titles); err != nil {
			return err
		}
		mutate = func(p *models.Project) error {
			p.Titles = titles
			return nil
		}

	case models.NodeStoryboard:
		var drafts []frameDraft
		if err := n.gen.GenerateJSON(ctx, prompt, node, &drafts); err != nil {
			return err
		}
		frames := reindexFrames(drafts)
		mutate = func(p *models.Project) error {
			p.Storyboard = frames
			return nil
		}

	case models.NodeCover:
		var covers models.CoverList
		if err := n.gen.GenerateJSON(ctx, prompt, node, &covers); err != nil {
			return err
		}
		mutate = func(p *models.Project) error {
			p.CoverOptions = covers
			return nil
		}

	case models.NodeCoverB:
		var covers models.CoverList
		if err := n.gen.GenerateJSON(ctx, prompt, node, &covers); err != nil {
			return err
		}
		mutate = func(p *models.Project) error {
			p.CoverOptionsB = covers
			return nil
		}

	case models.NodeCoverBg:
		var options models.CoverBgList
		if err := n.gen.GenerateJSON(ctx, prompt, node, &options); err != nil {
			return err
		}
		mutate = func(p *models.Project) error {
			p.CoverBgOptions = options
			return nil
		}

	default:
		return fmt.Errorf("unknown node: %s", node)
	}

	_, err = n.syncer.PushLocalChange(ctx, projectID, func(p *models.Project) error {
		if err := mutate(p); err != nil {
			return err
		}
		if p.ModuleTimestamps == nil {
			p.ModuleTimestamps = models.ModuleTimestamps{}
		}
		p.ModuleTimestamps[node] = n.now()
		return nil
	})
	return err
}

func (n *NodeOrchestrator) renderPrompt(p *models.Project, node string) (string, error) {
	overrides, err := n.store.GetPrompts()
	if err != nil {
		log.Printf("[Nodes] 读取模板覆盖失败，使用默认模板: %v", err)
		overrides = nil
	}
	merged := models.MergePrompts(overrides)
	tpl, ok := merged[node]
	if !ok {
		return "", fmt.Errorf("节点 %s 没有提示词模板", node)
	}
	return models.Interpolate(tpl, models.PromptVars(p)), nil
}

// frameDraft 结构化生成返回的分镜条目
type frameDraft struct {
	OriginalText string `json:"originalText"`
	Description  string `json:"description"`
	ImagePrompt  string `json:"imagePrompt"`
}

// reindexFrames 分镜全量替换：每条分配新 ID，sceneNumber 按返回顺序从 1 起，
// imagePrompt 缺省等于 description
func reindexFrames(drafts []frameDraft) models.FrameList {
	frames := models.FrameList{}
	for i, d := range drafts {
		prompt := d.ImagePrompt
		if strings.TrimSpace(prompt) == "" {
			prompt = d.Description
		}
		frames = append(frames, models.Frame{
			ID:           uuid.NewString(),
			SceneNumber:  i + 1,
			OriginalText: d.OriginalText,
			Description:  d.Description,
			ImagePrompt:  prompt,
		})
	}
	return frames
}
