package snapshot

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// writeTimeout bounds how long a single frame write may block; a
// slow/gone consumer's write times out and the connection is dropped,
// never the simulator goroutine (spec §5's non-blocking send rule).
const writeTimeout = 250 * time.Millisecond

// Server hosts the websocket endpoint an external visualizer connects
// to. It is the "visualization collaborator" named in spec §1/§6: the
// pixels are somebody else's problem, this just forwards RaceState
// frames as JSON.
type Server struct {
	echo      *echo.Echo
	publisher *Publisher
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewServer builds a Server that serves GET /ws, upgrading to a
// websocket and forwarding every RaceState the publisher emits.
func NewServer(publisher *Publisher, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		publisher: publisher,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	e.GET("/ws", s.handleWS)
	return s
}

// Start blocks serving on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleWS(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("snapshot websocket upgrade failed")
		return err
	}
	defer conn.Close()

	sub := s.publisher.Subscribe()
	sentDropWarning := false
	for state := range sub {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return nil
		}
		if err := conn.WriteJSON(state); err != nil {
			if !sentDropWarning {
				s.logger.Warn().Err(err).Msg("snapshot send failed, dropping consumer")
				sentDropWarning = true
			}
			return nil
		}
	}
	return nil
}
