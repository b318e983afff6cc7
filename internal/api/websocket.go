// internal/api/websocket.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/VoiceScribeMCP/internal/utils"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 60 * time.Second
)

// ProgressWebSocket 通过WebSocket推送任务进度
// GET /ws/progress/:taskID
func (h *Handler) ProgressWebSocket(c *gin.Context) {
	logger := utils.GetLogger()

	taskID := c.Param("taskID")
	if taskID == "" {
		http.Error(c.Writer, "任务ID缺失", http.StatusBadRequest)
		return
	}

	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		http.Error(c.Writer, "任务不存在", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	// 读协程只负责消费控制帧并感知客户端断开
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	updateChan := tracker.Subscribe()
	defer tracker.Unsubscribe(updateChan)

	// 连接建立后先推送当前状态，订阅晚于任务完成时客户端仍能拿到结果
	if result, status := tracker.GetResult(); status != "running" {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		conn.WriteJSON(gin.H{
			"type":    "progress",
			"task_id": taskID,
			"status":  status,
			"result":  result,
		})
		return
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(gin.H{"type": "connected", "task_id": taskID}); err != nil {
		return
	}

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-updateChan:
			if !ok {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(gin.H{
				"type":     "progress",
				"task_id":  taskID,
				"progress": update.Progress,
				"message":  update.Message,
				"status":   update.Status,
			}); err != nil {
				logger.Warnf("WebSocket 进度推送失败 %s: %v", taskID, err)
				return
			}

			if update.Status == "completed" || update.Status == "failed" {
				// 完成后附带最终结果再关闭
				result, status := tracker.GetResult()
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteJSON(gin.H{
					"type":    "result",
					"task_id": taskID,
					"status":  status,
					"result":  result,
				})
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
