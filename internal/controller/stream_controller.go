package controller

import (
	"net/http"
	"time"

	"winsentry/internal/dto"
	"winsentry/internal/model"
	"winsentry/internal/service"
	"winsentry/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// StreamController pushes every published snapshot to websocket clients.
type StreamController struct {
	snapshots            store.SnapshotStore
	snapshotQueryService service.SnapshotQueryService
	upgrader             websocket.Upgrader
}

func NewStreamController(snapshots store.SnapshotStore, snapshotQueryService service.SnapshotQueryService) *StreamController {
	return &StreamController{
		snapshots:            snapshots,
		snapshotQueryService: snapshotQueryService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func RegisterStreamRoutes(router *gin.Engine, controller *StreamController) {
	router.GET("/api/v1/stream", controller.Stream)
}

// Stream godoc
// @Summary      Stream snapshots
// @Description  Upgrades to a websocket and sends the latest snapshot, then every newly published one. Slow clients skip intermediate snapshots.
// @Tags         snapshot
// @Param        granularity query string false "Timeline bucket size" Enums(second, minute, hour, day)
// @Param        limit       query int    false "Maximum number of records per snapshot" minimum(1) maximum(1000)
// @Success      101 {object} dto.SnapshotResponse "Switching protocols, then one message per snapshot"
// @Failure      400 {object} model.Response "Invalid query parameters"
// @Router       /api/v1/stream [get]
func (c *StreamController) Stream(ctx *gin.Context) {
	limit, err := parseOptionalInt(ctx.Query("limit"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid limit. Use a positive integer.", nil))
		return
	}
	if g := ctx.Query("granularity"); g != "" {
		if _, err := model.ParseGranularity(g); err != nil {
			ctx.JSON(http.StatusBadRequest, model.NewResponse(err.Error(), nil))
			return
		}
	}
	req := dto.SnapshotRequest{Granularity: ctx.Query("granularity"), Limit: limit}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	id, updates := c.snapshots.Subscribe()
	defer c.snapshots.Unsubscribe(id)
	log.Debug().Str("subscriber", id).Str("remote", ctx.ClientIP()).Msg("Stream client connected")

	closed := make(chan struct{})
	go c.readPump(conn, closed)
	c.writePump(conn, updates, closed, req)
	log.Debug().Str("subscriber", id).Msg("Stream client disconnected")
}

// readPump discards client messages and notices the connection closing.
func (c *StreamController) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("Websocket read error")
			}
			return
		}
	}
}

func (c *StreamController) writePump(conn *websocket.Conn, updates <-chan *model.Snapshot, closed <-chan struct{}, req dto.SnapshotRequest) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case snap, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			resp, err := c.snapshotQueryService.Describe(snap, req)
			if err != nil {
				msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
