package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"CreatorStudio-server/config"

	"github.com/hibiken/asynq"
)

// Processor 消费生图批处理队列。并发度固定为 1：
// 外部生图接口有限流，帧级顺序执行是批处理的约定。
type Processor struct {
	Batcher *ImageBatcher
}

func NewProcessor(batcher *ImageBatcher) *Processor {
	return &Processor{Batcher: batcher}
}

// StartProcessor 启动任务消费者
func (p *Processor) StartProcessor() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     config.AppConfig.Redis.Addr,
			Password: config.AppConfig.Redis.Password,
		},
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeImageBatch, p.HandleImageBatch)

	log.Printf("Starting Image Batch Processor (concurrency=1)...")
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatalf("could not run server: %v", err)
		}
	}()
}

// HandleImageBatch 执行一轮批处理。为停止接口注册可取消的子上下文，
// 取消只会阻止后续帧开始，不中断已发出的请求。
func (p *Processor) HandleImageBatch(ctx context.Context, t *asynq.Task) error {
	var payload ImageBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing Image Batch: project=%s style=%s", payload.ProjectID, payload.Style)

	batchCtx, cancel := context.WithCancel(ctx)
	RegisterBatchCancel(payload.ProjectID, cancel)
	defer UnregisterBatchCancel(payload.ProjectID)

	err := p.Batcher.Run(batchCtx, payload.ProjectID, payload.Style)
	switch {
	case err == nil:
		log.Printf("Image Batch completed: project=%s", payload.ProjectID)
		return nil
	case errors.Is(err, ErrNothingToDo):
		log.Printf("Image Batch: 没有待生成的分镜 project=%s", payload.ProjectID)
		return nil
	case errors.Is(err, ErrBatchRunning), errors.Is(err, ErrNotFound), errors.Is(err, ErrProjectArchived):
		// 业务性拒绝，不重试
		log.Printf("Image Batch rejected: project=%s: %v", payload.ProjectID, err)
		return nil
	default:
		log.Printf("Image Batch failed: project=%s: %v", payload.ProjectID, err)
		return fmt.Errorf("image batch failed: %v: %w", err, asynq.SkipRetry)
	}
}
