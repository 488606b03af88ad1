package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"noirqr/config"
	"noirqr/internal/auth"
	"noirqr/internal/service"
	"noirqr/pkg/qr"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	generateWriteWait = 10 * time.Second
	generateReadWait  = 60 * time.Second
)

var generateUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsGenerateFrame struct {
	Type    string `json:"type"` // item, progress, complete, error
	Index   int    `json:"index,omitempty"`
	Content string `json:"content,omitempty"`
	Image   string `json:"image,omitempty"`
	Done    int    `json:"done,omitempty"`
	Total   int    `json:"total,omitempty"`
	Error   string `json:"error,omitempty"`

	Remaining int `json:"remaining,omitempty"`
	Needed    int `json:"needed,omitempty"`
}

// UpgradeGenerateWS streams a large batch generation. The client authenticates
// with a token query param, sends one GenerateRequest frame, and receives one
// frame per encoded code plus periodic progress. Credits for the whole batch
// are consumed up front; if that fails nothing is generated.
func UpgradeGenerateWS(jwtCfg *config.JWTConfig, qrCfg *config.QRConfig, ledger *service.LedgerService, encoder qr.Encoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseAccessToken(jwtCfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := generateUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(generateReadWait))
		var req GenerateRequest
		if err := conn.ReadJSON(&req); err != nil {
			writeFrame(conn, wsGenerateFrame{Type: "error", Error: "invalid request"})
			return
		}
		if len(req.Items) == 0 || len(req.Items) > qrCfg.MaxBatchSize {
			writeFrame(conn, wsGenerateFrame{Type: "error", Error: "invalid batch size"})
			return
		}
		for _, item := range req.Items {
			if item == "" {
				writeFrame(conn, wsGenerateFrame{Type: "error", Error: "empty item in batch"})
				return
			}
		}

		bal, err := ledger.Consume(claims.UserID, len(req.Items))
		if err != nil {
			var insufficient *service.InsufficientCreditsError
			if errors.As(err, &insufficient) {
				writeFrame(conn, wsGenerateFrame{
					Type:      "error",
					Error:     "insufficient credits",
					Remaining: insufficient.Remaining,
					Needed:    insufficient.Requested,
				})
				return
			}
			writeFrame(conn, wsGenerateFrame{Type: "error", Error: "failed to use credits"})
			return
		}

		opts := qr.Options{Size: req.Size, Level: req.Level, MaxSize: qrCfg.MaxSize}
		total := len(req.Items)
		for i, content := range req.Items {
			png, err := encoder.Encode(content, opts)
			frame := wsGenerateFrame{Type: "item", Index: i, Content: content, Done: i + 1, Total: total}
			if err != nil {
				frame.Error = "encoding failed"
			} else {
				frame.Image = base64.StdEncoding.EncodeToString(png)
			}
			if !writeFrame(conn, frame) {
				return // client went away; credits stay consumed
			}
		}
		writeFrame(conn, wsGenerateFrame{Type: "complete", Done: total, Total: total, Remaining: bal.Remaining})
	}
}

func writeFrame(conn *websocket.Conn, frame wsGenerateFrame) bool {
	conn.SetWriteDeadline(time.Now().Add(generateWriteWait))
	return conn.WriteJSON(frame) == nil
}
