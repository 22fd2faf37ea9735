package service

import (
	"context"
	"log"
	"sync"
	"time"

	"CreatorStudio-server/config"
	"CreatorStudio-server/models"
)

// 服务单例，在 main.go 的 InitServices 中装配
var (
	Local   LocalStore
	Gateway *GatewayClient
	Gen     Generator
	Sync    *Syncer
	Nodes   *NodeOrchestrator
	Images  *ImageBatcher
)

// InitServices 装配编排层依赖（需先完成 config / models / minio / queue 初始化）
func InitServices() {
	cfg := config.AppConfig

	Local = models.NewStore()
	Gateway = NewGatewayClient(cfg.Gateway.BaseURL, time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second)

	gen, err := NewGenAIClient(context.Background())
	if err != nil {
		log.Fatalf("GenAI 初始化失败: %v", err)
	}
	Gen = gen

	Sync = NewSyncer(Local, Gateway)
	Nodes = NewNodeOrchestrator(Sync, Local, Gen,
		time.Duration(cfg.Sync.RetryDelayMillis)*time.Millisecond)
	Images = NewImageBatcher(Sync, Local, Gen, Gateway)
}

// ---------------------------------------------------------------------------
// 调度器注册表：每个打开过的项目一个后台同步调度器
// ---------------------------------------------------------------------------

var schedulers = struct {
	sync.Mutex
	m map[string]*Scheduler
}{
	m: make(map[string]*Scheduler),
}

// EnsureScheduler 确保项目有一个已启动的后台同步调度器并返回它
func EnsureScheduler(projectID string) *Scheduler {
	schedulers.Lock()
	defer schedulers.Unlock()
	if sch, ok := schedulers.m[projectID]; ok {
		return sch
	}
	sch := NewScheduler(Sync, projectID, func() bool {
		return Nodes.BatchRunning(projectID) || Images.Running(projectID)
	})
	cfg := config.AppConfig.Sync
	sch.initialDelay = time.Duration(cfg.InitialDelaySeconds) * time.Second
	sch.interval = time.Duration(cfg.IntervalSeconds) * time.Second
	sch.backoff = time.Duration(cfg.BackoffSeconds) * time.Second
	sch.activityWindow = time.Duration(cfg.ActivityWindowSeconds) * time.Second
	sch.Start()
	schedulers.m[projectID] = sch
	return sch
}

// MarkProjectActivity 记录项目上的一次用户输入（编辑类请求调用）
func MarkProjectActivity(projectID string) {
	schedulers.Lock()
	sch, ok := schedulers.m[projectID]
	schedulers.Unlock()
	if ok {
		sch.MarkActivity()
	}
}

// StopScheduler 项目删除/归档时停掉后台同步
func StopScheduler(projectID string) {
	schedulers.Lock()
	defer schedulers.Unlock()
	if sch, ok := schedulers.m[projectID]; ok {
		sch.Stop()
		delete(schedulers.m, projectID)
	}
}
