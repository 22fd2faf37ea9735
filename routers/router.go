package routers

import (
	"CreatorStudio-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter() *gin.Engine {
	r := gin.Default()
	v1 := r.Group("/v1/api")
	{
		v1.POST("/projects", api.CreateProject)
		v1.GET("/projects", api.ListProjects)
		v1.GET("/projects/:project_id", api.GetProject)
		v1.PUT("/projects/:project_id", api.UpdateProject)
		v1.DELETE("/projects/:project_id", api.DeleteProject)
		v1.POST("/projects/:project_id/archive", api.ArchiveProject)
		v1.POST("/projects/:project_id/sync", api.SyncProject)
		v1.GET("/projects/:project_id/status", api.GetProjectStatus)

		v1.POST("/projects/:project_id/nodes/run-all", api.RunAllNodes)
		v1.POST("/projects/:project_id/nodes/:node_id/generate", api.GenerateNode)
		v1.POST("/projects/:project_id/nodes/:node_id/reset", api.ResetNode)

		v1.PUT("/projects/:project_id/frames/:frame_id", api.UpdateFrame)
		v1.POST("/projects/:project_id/frames/:frame_id/skip", api.ToggleFrameSkip)
		v1.POST("/projects/:project_id/images", api.StartImageBatch)
		v1.DELETE("/projects/:project_id/images", api.StopImageBatch)

		v1.GET("/inspirations", api.ListInspirations)
		v1.POST("/inspirations", api.CreateInspiration)
		v1.POST("/inspirations/import", api.ImportInspirations)
		v1.PUT("/inspirations/:inspiration_id", api.UpdateInspiration)
		v1.DELETE("/inspirations/:inspiration_id", api.DeleteInspiration)
		v1.POST("/inspirations/:inspiration_id/approve", api.ApproveInspiration)

		v1.GET("/prompts", api.GetPrompts)
		v1.PUT("/prompts", api.PutPrompts)

		v1.GET("/images/*image_key", api.ProxyImage)

		v1.POST("/backup", api.PushBackup)
		v1.POST("/backup/restore", api.RestoreBackup)
		v1.POST("/backup/pull", api.PullRemote)
	}
	r.GET("/projects/:project_id/wss", api.ProjectStatusWebSocket)
	return r
}
