package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"CreatorStudio-server/service"

	"github.com/gin-gonic/gin"
)

// 单节点生成：POST /v1/api/projects/:project_id/nodes/:node_id/generate
func GenerateNode(c *gin.Context) {
	projectID := c.Param("project_id")
	nodeID := c.Param("node_id")

	service.MarkProjectActivity(projectID)
	if err := service.Nodes.GenerateOne(c.Request.Context(), projectID, nodeID); err != nil {
		respondGenerateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id": projectID,
		"node_id":    nodeID,
		"message":    "节点生成完成",
	})
}

// 一键批量生成：POST /v1/api/projects/:project_id/nodes/run-all
// 目标筛选与前置校验同步完成，实际生成在后台并发执行
func RunAllNodes(c *gin.Context) {
	projectID := c.Param("project_id")

	service.MarkProjectActivity(projectID)
	go func() {
		if err := service.Nodes.RunAll(context.Background(), projectID); err != nil {
			switch {
			case errors.Is(err, service.ErrNothingToDo):
				log.Printf("[Nodes] 批量生成无目标: project=%s", projectID)
			default:
				log.Printf("[Nodes] 批量生成失败: project=%s: %v", projectID, err)
			}
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"project_id": projectID,
		"message":    "批量生成已启动，进度见状态接口",
	})
}

// 重置节点：POST /v1/api/projects/:project_id/nodes/:node_id/reset
func ResetNode(c *gin.Context) {
	projectID := c.Param("project_id")
	nodeID := c.Param("node_id")

	service.MarkProjectActivity(projectID)
	if err := service.Nodes.ResetNode(c.Request.Context(), projectID, nodeID); err != nil {
		respondGenerateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id": projectID,
		"node_id":    nodeID,
		"message":    "节点已重置",
	})
}

func respondGenerateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "项目不存在"})
	case errors.Is(err, service.ErrProjectArchived):
		c.JSON(http.StatusConflict, gin.H{"error": "项目已归档，禁止变更"})
	case errors.Is(err, service.ErrMissingDependency):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "请先生成脚本"})
	case errors.Is(err, service.ErrNothingToDo):
		c.JSON(http.StatusOK, gin.H{"message": "所有节点都已有内容，无需生成"})
	case errors.Is(err, service.ErrBatchRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "批量生成正在进行中"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成失败: " + err.Error()})
	}
}
