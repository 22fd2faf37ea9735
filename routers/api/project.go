package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"CreatorStudio-server/models"
	"CreatorStudio-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 创建项目
func CreateProject(c *gin.Context) {
	var req struct {
		Title  string               `json:"title"`
		Inputs models.ProjectInputs `json:"inputs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == "" {
		req.Title = req.Inputs.Topic
	}

	project := models.NewProject(uuid.NewString(), req.Title, req.Inputs)
	if err := service.Sync.CreateLocal(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建项目失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// 项目列表（本地库，按 updated_at 倒序）
func ListProjects(c *gin.Context) {
	projects, err := service.Local.ListProjects()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目列表失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// 获取项目：先回本地副本（乐观渲染），对账在后台继续，
// 远端更新的结果通过状态 WebSocket / 下次请求体现
func GetProject(c *gin.Context) {
	projectID := c.Param("project_id")

	respond := make(chan *models.Project, 1)
	errCh := make(chan error, 1)
	go func() {
		first := true
		err := service.Sync.LoadAndReconcile(context.Background(), projectID, func(p *models.Project) {
			if first {
				first = false
				respond <- p
			}
		})
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case p := <-respond:
		service.EnsureScheduler(projectID)
		c.JSON(http.StatusOK, gin.H{"project": p})
	case err := <-errCh:
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "项目不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目失败: " + err.Error()})
	}
}

// 更新项目（标题 / 输入 / 脚本与产出字段的手工编辑）
func UpdateProject(c *gin.Context) {
	projectID := c.Param("project_id")

	var req struct {
		Title       *string               `json:"title"`
		Inputs      *models.ProjectInputs `json:"inputs"`
		Script      *string               `json:"script"`
		Summary     *string               `json:"summary"`
		CoverBgText *string               `json:"coverBgText"`
		Status      *string               `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != nil {
		switch *req.Status {
		case models.ProjectStatusDraft, models.ProjectStatusInProgress,
			models.ProjectStatusCompleted, models.ProjectStatusArchived:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "非法的项目状态: " + *req.Status})
			return
		}
	}

	service.MarkProjectActivity(projectID)
	p, err := service.Sync.PushLocalChange(c.Request.Context(), projectID, func(p *models.Project) error {
		if req.Title != nil {
			p.Title = *req.Title
		}
		if req.Inputs != nil {
			p.Inputs = *req.Inputs
		}
		if req.Script != nil {
			p.Script = *req.Script
		}
		if req.Summary != nil {
			p.Summary = *req.Summary
		}
		if req.CoverBgText != nil {
			p.CoverBgText = *req.CoverBgText
		}
		if req.Status != nil {
			p.Status = *req.Status
		}
		return nil
	})
	if err != nil {
		respondMutationError(c, err, "更新项目失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p, "syncStatus": service.Sync.Status(projectID)})
}

// 归档项目（终态，之后编排器拒绝任何变更）
func ArchiveProject(c *gin.Context) {
	projectID := c.Param("project_id")

	p, err := service.Sync.PushLocalChange(c.Request.Context(), projectID, func(p *models.Project) error {
		p.Status = models.ProjectStatusArchived
		return nil
	})
	if err != nil {
		respondMutationError(c, err, "归档失败")
		return
	}
	service.StopScheduler(projectID)
	c.JSON(http.StatusOK, gin.H{"project": p, "message": "项目已归档"})
}

// 删除项目
func DeleteProject(c *gin.Context) {
	projectID := c.Param("project_id")

	if service.CancelImageBatch(projectID) {
		log.Printf("Cancelled image batch for project %s (project delete)", projectID)
	}
	service.StopScheduler(projectID)

	if err := service.Sync.Delete(c.Request.Context(), projectID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除项目失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "项目已删除", "project_id": projectID})
}

// 手动触发一次对账
func SyncProject(c *gin.Context) {
	projectID := c.Param("project_id")

	err := service.Sync.LoadAndReconcile(c.Request.Context(), projectID, func(*models.Project) {})
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "项目不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "同步失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"syncStatus": service.Sync.Status(projectID)})
}

func respondMutationError(c *gin.Context, err error, prefix string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "项目不存在"})
	case errors.Is(err, service.ErrProjectArchived):
		c.JSON(http.StatusConflict, gin.H{"error": "项目已归档，禁止变更"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": prefix + ": " + err.Error()})
	}
}
