package controller

import (
	"net/http"
	"time"

	"climalog/internal/modules/readings/service"
)

// Streamer serves the live readings feed.
type Streamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

type ReadingsController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type readingsControllerImpl struct {
	service  *service.Service
	streamer Streamer
	location *time.Location
}

func NewReadingsController(svc *service.Service, streamer Streamer) ReadingsController {
	return &readingsControllerImpl{service: svc, streamer: streamer, location: time.Local}
}

func (c *readingsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleRoot)
	mux.HandleFunc("POST /senddata", c.handleSendData)
	mux.HandleFunc("GET /data", c.handleData)
	mux.HandleFunc("GET /chart", c.handleChart)
	if c.streamer != nil {
		mux.HandleFunc("GET /data/stream", c.streamer.ServeWS)
	}
}
