package api

import (
	"errors"
	"log"
	"net/http"

	"CreatorStudio-server/models"
	"CreatorStudio-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 灵感列表
func ListInspirations(c *gin.Context) {
	list, err := service.Local.ListInspirations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取灵感列表失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inspirations": list})
}

// 新建灵感
func CreateInspiration(c *gin.Context) {
	var req struct {
		Category string `json:"category"`
		Content  string `json:"content"`
		Rating   int    `json:"rating"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	insp := models.Inspiration{
		ID:        uuid.NewString(),
		Category:  req.Category,
		Content:   req.Content,
		Title:     models.DeriveInspirationTitle(req.Content),
		Rating:    req.Rating,
		CreatedAt: models.NowMilli(),
	}
	if err := service.Local.SaveInspiration(&insp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存灵感失败: " + err.Error()})
		return
	}
	pushInspirations(c)
	c.JSON(http.StatusOK, gin.H{"inspiration": insp})
}

// 更新灵感（评分 / 标记 / 分类）
func UpdateInspiration(c *gin.Context) {
	inspID := c.Param("inspiration_id")

	var req struct {
		Category *string `json:"category"`
		Rating   *int    `json:"rating"`
		Marked   *bool   `json:"marked"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	insp, err := service.Local.GetInspiration(inspID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "灵感不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取灵感失败: " + err.Error()})
		return
	}
	if req.Category != nil {
		insp.Category = *req.Category
	}
	if req.Rating != nil {
		insp.Rating = *req.Rating
	}
	if req.Marked != nil {
		insp.Marked = *req.Marked
	}
	if err := service.Local.SaveInspiration(insp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存灵感失败: " + err.Error()})
		return
	}
	pushInspirations(c)
	c.JSON(http.StatusOK, gin.H{"inspiration": insp})
}

// 删除灵感
func DeleteInspiration(c *gin.Context) {
	inspID := c.Param("inspiration_id")
	if err := service.Local.DeleteInspiration(inspID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除灵感失败: " + err.Error()})
		return
	}
	pushInspirations(c)
	c.JSON(http.StatusOK, gin.H{"message": "灵感已删除", "inspiration_id": inspID})
}

// 采纳灵感：以灵感内容为种子创建新项目，灵感本身不动
func ApproveInspiration(c *gin.Context) {
	inspID := c.Param("inspiration_id")

	insp, err := service.Local.GetInspiration(inspID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "灵感不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取灵感失败: " + err.Error()})
		return
	}

	project := models.NewProject(uuid.NewString(), insp.Title, models.ProjectInputs{
		Topic:     insp.Title,
		CorePoint: insp.Content,
	})
	if err := service.Sync.CreateLocal(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建项目失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project, "inspiration_id": inspID})
}

// 批量导入：POST /v1/api/inspirations/import  {"text": "...", "category": "..."}
func ImportInspirations(c *gin.Context) {
	var req struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	drafts := service.ParseBulkImport(req.Text)
	if len(drafts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法从文本中解析出灵感条目"})
		return
	}

	var created []models.Inspiration
	for _, d := range drafts {
		category := d.Category
		if category == "" {
			category = req.Category
		}
		insp := models.Inspiration{
			ID:        uuid.NewString(),
			Category:  category,
			Content:   d.Content,
			Title:     models.DeriveInspirationTitle(d.Content),
			Rating:    d.Rating,
			CreatedAt: models.NowMilli(),
		}
		if err := service.Local.SaveInspiration(&insp); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "保存灵感失败: " + err.Error()})
			return
		}
		created = append(created, insp)
	}
	pushInspirations(c)
	c.JSON(http.StatusOK, gin.H{"inspirations": created, "count": len(created)})
}

// pushInspirations 尽力把整表推到远端网关，失败只记日志
func pushInspirations(c *gin.Context) {
	list, err := service.Local.ListInspirations()
	if err != nil {
		log.Printf("[Inspirations] 读取列表失败，跳过远端推送: %v", err)
		return
	}
	if err := service.Gateway.PushInspirations(c.Request.Context(), list); err != nil {
		log.Printf("[Inspirations] 推送远端失败: %v", err)
	}
}
