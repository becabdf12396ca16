package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"auto-tube/app/logger"
	"auto-tube/app/model"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// JobUpdateHub 向所有已连接的管理端客户端广播任务状态变更
type JobUpdateHub struct {
	log        *logger.Logger
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	mu         sync.Mutex
	upgrader   websocket.Upgrader
}

// NewJobUpdateHub 创建广播中心
func NewJobUpdateHub(log *logger.Logger) *JobUpdateHub {
	return &JobUpdateHub{
		log:        log,
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		stopCh:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			// 管理端跨端口访问，放开来源检查
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start 启动广播协程
func (h *JobUpdateHub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-h.stopCh:
				h.mu.Lock()
				for client := range h.clients {
					client.Close()
					delete(h.clients, client)
				}
				h.mu.Unlock()
				return
			case client := <-h.register:
				h.mu.Lock()
				h.clients[client] = true
				h.mu.Unlock()
				h.log.Debugf("WebSocket 客户端连接，当前: %d", len(h.clients))
			case client := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[client]; ok {
					delete(h.clients, client)
					client.Close()
				}
				h.mu.Unlock()
			case message := <-h.broadcast:
				h.mu.Lock()
				for client := range h.clients {
					if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
						client.Close()
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			}
		}
	}()
}

// Stop 停止广播协程并断开所有客户端
func (h *JobUpdateHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	h.wg.Wait()
}

// NotifyJob 广播一条任务状态变更，管理端没人在线时直接丢弃
func (h *JobUpdateHub) NotifyJob(job *model.Job) {
	payload, err := json.Marshal(map[string]any{
		"type":      "job_update",
		"job_id":    job.ID,
		"state":     job.State,
		"stage":     job.CurrentStage,
		"timestamp": time.Now(),
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// ServeWS 将HTTP连接升级为WebSocket并注册到广播中心
func (h *JobUpdateHub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("WebSocket 升级失败: %v", err)
		return
	}
	select {
	case h.register <- conn:
	case <-h.stopCh:
		conn.Close()
		return
	}

	// 读协程只为感知断开
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.stopCh:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
