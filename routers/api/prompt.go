package api

import (
	"log"
	"net/http"

	"CreatorStudio-server/models"
	"CreatorStudio-server/service"

	"github.com/gin-gonic/gin"
)

// 读取提示词模板（默认值与持久化覆盖合并后的完整表）
func GetPrompts(c *gin.Context) {
	overrides, err := service.Local.GetPrompts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取模板失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"prompts":   models.MergePrompts(overrides),
		"overrides": overrides,
	})
}

// 保存提示词覆盖项；未提交的键继续回落默认模板
func PutPrompts(c *gin.Context) {
	var overrides map[string]string
	if err := c.ShouldBindJSON(&overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := service.Local.SavePrompts(overrides); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存模板失败: " + err.Error()})
		return
	}
	if err := service.Gateway.PushPrompts(c.Request.Context(), overrides); err != nil {
		log.Printf("[Prompts] 推送远端失败: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"prompts": models.MergePrompts(overrides)})
}
