package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"CreatorStudio-server/models"
	"CreatorStudio-server/service"

	"github.com/gin-gonic/gin"
)

// 编辑分镜（描述 / 生图提示词）
func UpdateFrame(c *gin.Context) {
	projectID := c.Param("project_id")
	frameID := c.Param("frame_id")

	var req struct {
		Description *string `json:"description"`
		ImagePrompt *string `json:"imagePrompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	service.MarkProjectActivity(projectID)
	p, err := service.Sync.PushLocalChange(c.Request.Context(), projectID, func(p *models.Project) error {
		for i := range p.Storyboard {
			if p.Storyboard[i].ID == frameID {
				if req.Description != nil {
					p.Storyboard[i].Description = *req.Description
				}
				if req.ImagePrompt != nil {
					p.Storyboard[i].ImagePrompt = *req.ImagePrompt
				}
				return nil
			}
		}
		return fmt.Errorf("分镜 %s 不存在", frameID)
	})
	if err != nil {
		respondMutationError(c, err, "更新分镜失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// 切换分镜的“跳过生成”标记（可逆，批处理与待生成计数都会排除被跳过的帧）
func ToggleFrameSkip(c *gin.Context) {
	projectID := c.Param("project_id")
	frameID := c.Param("frame_id")

	service.MarkProjectActivity(projectID)
	p, err := service.Sync.PushLocalChange(c.Request.Context(), projectID, func(p *models.Project) error {
		for i := range p.Storyboard {
			if p.Storyboard[i].ID == frameID {
				p.Storyboard[i].SkipGeneration = !p.Storyboard[i].SkipGeneration
				return nil
			}
		}
		return fmt.Errorf("分镜 %s 不存在", frameID)
	})
	if err != nil {
		respondMutationError(c, err, "更新分镜失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// 启动分镜批量生图：POST /v1/api/projects/:project_id/images  {"style": "realistic"}
func StartImageBatch(c *gin.Context) {
	projectID := c.Param("project_id")

	var req struct {
		Style string `json:"style"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	service.MarkProjectActivity(projectID)
	if err := service.EnqueueImageBatch(projectID, req.Style); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "任务入队失败"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"project_id": projectID,
		"message":    "批量生图已入队",
	})
}

// 图片代理：取回网关图床上的图片字节（网关不直接对前端开放时使用）
func ProxyImage(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("image_key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image key is required"})
		return
	}

	data, err := service.Gateway.GetImage(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "图片不存在"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "拉取图片失败: " + err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// 停止分镜批量生图（帧间生效，已发出的单帧请求不中断）
func StopImageBatch(c *gin.Context) {
	projectID := c.Param("project_id")

	if service.CancelImageBatch(projectID) {
		log.Printf("Cancelled image batch for project %s", projectID)
		c.JSON(http.StatusOK, gin.H{"message": "批量生图已停止", "project_id": projectID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "没有进行中的批量生图", "project_id": projectID})
}
