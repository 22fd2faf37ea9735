package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"CreatorStudio-server/config"

	"github.com/hibiken/asynq"
)

const (
	TypeImageBatch = "images:batch"
)

// ImageBatchPayload 生图批处理任务载荷
type ImageBatchPayload struct {
	ProjectID string `json:"project_id"`
	Style     string `json:"style"`
}

var QueueClient *asynq.Client

// InitQueue 初始化
func InitQueue() {
	QueueClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.Redis.Addr,
		Password: config.AppConfig.Redis.Password,
	})
}

// EnqueueImageBatch 将一轮分镜生图批处理入队。
// 批处理自身已有逐帧容错，队列层不做整批重试。
func EnqueueImageBatch(projectID, style string) error {
	payload, err := json.Marshal(ImageBatchPayload{ProjectID: projectID, Style: style})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(TypeImageBatch, payload,
		asynq.MaxRetry(0),             // 逐帧重试语义在批处理内部，整批不重试
		asynq.Timeout(30*time.Minute), // 逐帧顺序生成较慢，设置较长超时
		asynq.Retention(24*time.Hour),
	)

	info, err := QueueClient.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	log.Printf("[Queue] Image Batch Enqueued: project=%s, queueID=%s", projectID, info.ID)
	return nil
}
