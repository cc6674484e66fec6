// Package web serves a live dashboard of the emotion reports.
//
// The Server is a pipeline sink: each analyzed frame is appended to a
// bounded history and pushed to /ws/reports, and annotated JPEG frames are
// pushed to /ws/camera while someone is watching.
package web

import (
	"embed"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/capture"
	"github.com/teslashibe/go-moodcam/pkg/debug"
	"github.com/teslashibe/go-moodcam/pkg/display"
	"github.com/teslashibe/go-moodcam/pkg/hub"
	"github.com/teslashibe/go-moodcam/pkg/pipeline"
)

//go:embed static
var static embed.FS

// DefaultHistory is how many reports /api/reports keeps.
const DefaultHistory = 100

// DefaultFrameInterval throttles /ws/camera.
const DefaultFrameInterval = 100 * time.Millisecond

// Info describes the run being served.
type Info struct {
	Session    string `json:"session"`
	Mode       string `json:"mode"`
	Source     string `json:"source"`
	Classifier string `json:"classifier"`
}

// Status is the /api/status payload.
type Status struct {
	Info
	Frames        int    `json:"frames"`
	Analyses      int    `json:"analyses"`
	LastSummary   string `json:"last_summary"`
	LastAnalysis  string `json:"last_analysis,omitempty"`
	Uptime        string `json:"uptime"`
	ReportClients int    `json:"report_clients"`
	CameraClients int    `json:"camera_clients"`
}

// Server is the dashboard.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	reportHub *hub.Hub
	cameraHub *hub.Hub

	// FrameInterval is the minimum spacing of camera frames.
	FrameInterval time.Duration

	mu        sync.RWMutex
	info      Info
	started   time.Time
	frames    int
	analyses  int
	history   []*pipeline.Report
	limit     int
	last      *pipeline.Report
	lastFrame time.Time

	closeOnce sync.Once
}

// NewServer creates a dashboard that will listen on addr (":8090").
func NewServer(addr string, info Info) *Server {
	s := &Server{
		addr:          addr,
		logger:        log.Component("web"),
		reportHub:     hub.New("reports"),
		cameraHub:     hub.New("camera"),
		FrameInterval: DefaultFrameInterval,
		info:          info,
		started:       time.Now(),
		limit:         DefaultHistory,
	}

	app := fiber.New(fiber.Config{
		AppName:               "moodcam",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
	}))
	if debug.Enabled {
		app.Use(logger.New())
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/reports", s.handleReports)
	api.Get("/reports/latest", s.handleLatest)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/reports", websocket.New(s.handleReportsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(static),
		PathPrefix: "static",
		Index:      "index.html",
	}))

	s.app = app
	go s.reportHub.Run()
	go s.cameraHub.Run()
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens until Close is called.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync runs Start in a goroutine and logs its failure.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("dashboard stopped", "error", err)
		}
	}()
}

// Show records report and forwards the frame to camera subscribers.
func (s *Server) Show(frame *capture.Frame, report *pipeline.Report) (pipeline.Action, error) {
	s.mu.Lock()
	s.frames++
	if report != nil {
		s.analyses++
		s.last = report
		s.history = append(s.history, report)
		if len(s.history) > s.limit {
			s.history = s.history[len(s.history)-s.limit:]
		}
	}
	overlay := s.last
	sendFrame := s.cameraHub.ClientCount() > 0 && frame != nil &&
		frame.Time.Sub(s.lastFrame) >= s.FrameInterval
	if sendFrame {
		s.lastFrame = frame.Time
	}
	s.mu.Unlock()

	if report != nil {
		if err := s.reportHub.BroadcastJSON(newReportMessage(report)); err != nil {
			return pipeline.Continue, err
		}
	}

	if sendFrame {
		img := frame.Mat.Clone()
		defer img.Close()
		display.Annotate(&img, overlay)

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			return pipeline.Continue, err
		}
		data := append([]byte(nil), buf.GetBytes()...)
		buf.Close()
		s.cameraHub.BroadcastBinary(data)
	}
	return pipeline.Continue, nil
}

// Close shuts the server down and stops the hubs.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.app.ShutdownWithTimeout(2 * time.Second)
		s.reportHub.Stop()
		s.cameraHub.Stop()
	})
	return err
}

func (s *Server) status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Info:          s.info,
		Frames:        s.frames,
		Analyses:      s.analyses,
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		ReportClients: s.reportHub.ClientCount(),
		CameraClients: s.cameraHub.ClientCount(),
	}
	if s.last != nil {
		st.LastSummary = s.last.Summary()
		st.LastAnalysis = s.last.Time.Format(time.RFC3339)
	}
	return st
}

// reportMessage is the wire form of a report, with its summary.
type reportMessage struct {
	*pipeline.Report
	Summary string `json:"summary"`
}

func newReportMessage(r *pipeline.Report) reportMessage {
	return reportMessage{Report: r, Summary: r.Summary()}
}

var _ pipeline.Sink = (*Server)(nil)
