package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/psannetwork/youtube/internal/api/middleware"
	"github.com/psannetwork/youtube/internal/domain"
	"github.com/psannetwork/youtube/internal/logger"
	"github.com/psannetwork/youtube/internal/supervisor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement happens in the CORS middleware layer; the
	// socket itself accepts any origin, matching the HTTP endpoints.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamHandler serves the persistent push channel. A client starts
// downloads or subscribes to existing jobs over one socket and receives
// a stream of job snapshots until each job reaches a terminal state.
type StreamHandler struct {
	sup *supervisor.Supervisor
}

// NewStreamHandler creates a new WebSocket handler.
func NewStreamHandler(sup *supervisor.Supervisor) *StreamHandler {
	return &StreamHandler{sup: sup}
}

type wsRequest struct {
	Action    string         `json:"action"`
	RequestID string         `json:"request_id,omitempty"`
	URL       string         `json:"url,omitempty"`
	Format    string         `json:"format,omitempty"`
	Options   domain.Options `json:"options"`
	JobID     string         `json:"job_id,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent
// writer only, and every active subscription shares the socket.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// Serve handles GET /ws. Disconnection cancels every subscription held
// by this client without affecting the underlying jobs.
func (h *StreamHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer conn.Close()

	log := middleware.GetLogger(c)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	w := &wsConn{conn: conn}
	var wg sync.WaitGroup

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			break
		}

		switch req.Action {
		case "start":
			h.handleStart(ctx, w, req, &wg, log)
		case "subscribe":
			h.attach(ctx, w, req.JobID, req.RequestID, &wg)
		default:
			w.send(gin.H{"type": "error", "request_id": req.RequestID, "message": "unknown action"})
		}
	}

	cancel()
	wg.Wait()
}

func (h *StreamHandler) handleStart(ctx context.Context, w *wsConn, req wsRequest, wg *sync.WaitGroup, log *logger.Logger) {
	normalized, format, opts, err := validateStart(req.URL, req.Format, req.Options)
	if err != nil {
		w.send(gin.H{"type": "error", "request_id": req.RequestID, "message": err.Error()})
		return
	}

	job, err := h.sup.Start(normalized, format, opts)
	if err != nil {
		log.Warnf("websocket start rejected: %v", err)
		w.send(gin.H{"type": "error", "request_id": req.RequestID, "message": "could not start the download"})
		return
	}

	w.send(gin.H{"type": "accepted", "request_id": req.RequestID, "job_id": job.ID})
	h.attach(ctx, w, job.ID, req.RequestID, wg)
}

// attach subscribes the socket to a job and streams snapshots until the
// job completes or the client goes away.
func (h *StreamHandler) attach(ctx context.Context, w *wsConn, jobID, requestID string, wg *sync.WaitGroup) {
	sub, snapshot, err := h.sup.Subscribe(jobID)
	if err != nil {
		w.send(gin.H{"type": "error", "request_id": requestID, "job_id": jobID, "message": "job not found"})
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sub.Cancel()

		// Late subscribers immediately get the then-current snapshot.
		if err := w.send(snapshotEvent(snapshot, requestID)); err != nil {
			return
		}
		if snapshot.Status.Terminal() {
			return
		}

		for {
			job, ok := sub.Next(ctx)
			if !ok {
				return
			}
			if err := w.send(snapshotEvent(job, requestID)); err != nil {
				return
			}
			if job.Status.Terminal() {
				return
			}
		}
	}()
}

// snapshotEvent maps one job snapshot to the wire event the original
// client protocol expects: progress, complete, or error.
func snapshotEvent(job domain.Job, requestID string) gin.H {
	switch job.Status {
	case domain.StatusCompleted:
		files := make([]fileDTO, 0, len(job.Files))
		for _, f := range job.Files {
			files = append(files, fileDTO{
				Name:      f.Name,
				SizeBytes: f.SizeBytes,
				URL:       downloadURL(job.WorkspaceID, f.Name),
			})
		}
		return gin.H{
			"type":       "complete",
			"request_id": requestID,
			"job_id":     job.ID,
			"files":      files,
		}
	case domain.StatusFailed:
		return gin.H{
			"type":       "error",
			"request_id": requestID,
			"job_id":     job.ID,
			"message":    job.Error,
		}
	case domain.StatusExpired:
		return gin.H{
			"type":       "error",
			"request_id": requestID,
			"job_id":     job.ID,
			"message":    "download expired",
		}
	default:
		return gin.H{
			"type":       "progress",
			"request_id": requestID,
			"job_id":     job.ID,
			"percent":    job.Progress.Percent,
			"eta":        job.Progress.ETASeconds,
			"speed":      job.Progress.BytesPerSecond,
		}
	}
}
