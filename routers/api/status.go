package api

import (
	"net/http"
	"reflect"
	"time"

	"CreatorStudio-server/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProjectStatus 项目状态快照：同步标记、各节点生成/失败标记、批处理进度
type ProjectStatus struct {
	ProjectID       string                      `json:"projectId"`
	SyncStatus      string                      `json:"syncStatus"`
	UpdatedAt       int64                       `json:"updatedAt"`
	GeneratingNodes []string                    `json:"generatingNodes,omitempty"`
	FailedNodes     []string                    `json:"failedNodes,omitempty"`
	BatchRunning    bool                        `json:"batchRunning"`
	ImageBatch      *service.ImageBatchProgress `json:"imageBatch,omitempty"`
}

func snapshotStatus(projectID string) ProjectStatus {
	st := ProjectStatus{
		ProjectID:       projectID,
		SyncStatus:      service.Sync.Status(projectID),
		GeneratingNodes: service.Nodes.GeneratingNodes(projectID),
		FailedNodes:     service.Nodes.FailedNodes(projectID),
		BatchRunning:    service.Nodes.BatchRunning(projectID),
		ImageBatch:      service.Images.Progress(projectID),
	}
	if p, err := service.Local.GetProject(projectID); err == nil {
		st.UpdatedAt = p.UpdatedAt
	}
	return st
}

// 查询项目状态：GET /v1/api/projects/:project_id/status
func GetProjectStatus(c *gin.Context) {
	projectID := c.Param("project_id")
	if _, err := service.Local.GetProject(projectID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": snapshotStatus(projectID)})
}

// 项目状态 WebSocket 推送：每秒轮询编排器状态，有变化才下发。
// 同步对账的二次结果（updatedAt 变化）也通过这里到达前端。
func ProjectStatusWebSocket(c *gin.Context) {
	projectID := c.Param("project_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	if _, err := service.Local.GetProject(projectID); err != nil {
		conn.WriteJSON(map[string]interface{}{"error": "project not found"})
		return
	}

	streamProjectStatus(conn, projectID, snapshotStatus)
}

// streamProjectStatus 周期轮询状态并推送变化。读泵只为感知断连：
// 状态长期不变时写侧不会触碰连接，没有读泵则断开的客户端永远不被发现。
func streamProjectStatus(conn *websocket.Conn, projectID string, snapshot func(string) ProjectStatus) {
	prev := snapshot(projectID)
	_ = conn.WriteJSON(prev)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			cur := snapshot(projectID)
			if reflect.DeepEqual(cur, prev) {
				continue
			}
			if err := conn.WriteJSON(cur); err != nil {
				return
			}
			prev = cur
		}
	}
}
