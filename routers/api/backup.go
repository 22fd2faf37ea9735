package api

import (
	"errors"
	"log"
	"net/http"

	"CreatorStudio-server/models"
	"CreatorStudio-server/service"

	"github.com/gin-gonic/gin"
)

// 全量备份：把本地三张表打包成快照推到网关 POST /sync
func PushBackup(c *gin.Context) {
	projects, err := service.Local.ListProjects()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目失败: " + err.Error()})
		return
	}
	inspirations, err := service.Local.ListInspirations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取灵感失败: " + err.Error()})
		return
	}
	prompts, err := service.Local.GetPrompts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取模板失败: " + err.Error()})
		return
	}

	snap := &service.Snapshot{
		Projects:     projects,
		Inspirations: inspirations,
		Prompts:      prompts,
	}
	if err := service.Gateway.PushSnapshot(c.Request.Context(), snap); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "推送快照失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "备份完成",
		"projects":     len(projects),
		"inspirations": len(inspirations),
	})
}

// 全量恢复：拉取网关快照并覆盖写回本地（逐条 upsert，时间戳保持快照值）
func RestoreBackup(c *gin.Context) {
	snap, err := service.Gateway.FetchSnapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "拉取快照失败: " + err.Error()})
		return
	}

	for i := range snap.Projects {
		if err := service.Local.SaveProject(&snap.Projects[i]); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写入项目失败: " + err.Error()})
			return
		}
	}
	for i := range snap.Inspirations {
		if err := service.Local.SaveInspiration(&snap.Inspirations[i]); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写入灵感失败: " + err.Error()})
			return
		}
	}
	if len(snap.Prompts) > 0 {
		if err := service.Local.SavePrompts(snap.Prompts); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写入模板失败: " + err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "恢复完成",
		"projects":     len(snap.Projects),
		"inspirations": len(snap.Inspirations),
	})
}

// 增量拉取：逐实体拉取远端数据并合并到本地。与快照恢复不同，
// 项目按 updatedAt 大者胜合并，更新的本地副本不会被覆盖；
// 灵感只补本地缺失的条目，本地的评分/标记编辑保持原样。
func PullRemote(c *gin.Context) {
	ctx := c.Request.Context()

	projects, err := service.Gateway.ListProjects(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "拉取项目列表失败: " + err.Error()})
		return
	}
	mergedProjects := 0
	for i := range projects {
		rp := &projects[i]
		local, err := service.Local.GetProject(rp.ID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目失败: " + err.Error()})
			return
		}
		if local != nil && local.UpdatedAt >= rp.UpdatedAt {
			continue
		}
		if err := service.Local.SaveProject(rp); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写入项目失败: " + err.Error()})
			return
		}
		mergedProjects++
	}

	prompts, err := service.Gateway.FetchPrompts(ctx)
	if err != nil {
		log.Printf("[Pull] 拉取模板失败，跳过: %v", err)
	} else if len(prompts) > 0 {
		if err := service.Local.SavePrompts(prompts); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写入模板失败: " + err.Error()})
			return
		}
	}

	inspirations, err := service.Gateway.FetchInspirations(ctx)
	if err != nil {
		log.Printf("[Pull] 拉取灵感失败，跳过: %v", err)
	}
	addedInspirations := 0
	for i := range inspirations {
		if _, err := service.Local.GetInspiration(inspirations[i].ID); err == nil {
			continue
		}
		if err := service.Local.SaveInspiration(&inspirations[i]); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写入灵感失败: " + err.Error()})
			return
		}
		addedInspirations++
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "拉取完成",
		"projects":     mergedProjects,
		"inspirations": addedInspirations,
	})
}
