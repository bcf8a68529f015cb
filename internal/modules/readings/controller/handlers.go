package controller

import (
	"bytes"
	"log/slog"
	"net/http"

	"climalog/internal/modules/readings/service"
	"climalog/internal/modules/readings/views"
	"climalog/internal/utils"
)

const (
	sendDataOK   = "Data sent was successful"
	maxFormBytes = 1 << 16
)

type liveness struct {
	Title string `json:"title"`
	Value int    `json:"value"`
}

func (c *readingsControllerImpl) handleRoot(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, liveness{Title: "Temp", Value: 30})
}

func (c *readingsControllerImpl) handleSendData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	reading, err := service.ParseForm(r.PostForm)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := c.service.Ingest(r.Context(), service.SourceHTTP, reading); err != nil {
		utils.WriteError(w, utils.StatusForError(err), "failed to store reading")
		return
	}
	utils.WriteJSON(w, http.StatusOK, sendDataOK)
}

func (c *readingsControllerImpl) handleData(w http.ResponseWriter, r *http.Request) {
	readings, err := c.service.RecentRaw(r.Context(), r.URL.Query().Get("num"))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *readingsControllerImpl) handleChart(w http.ResponseWriter, r *http.Request) {
	readings, err := c.service.RecentRaw(r.Context(), r.URL.Query().Get("num"))
	if err != nil {
		writeQueryError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := views.RenderChart(&buf, views.NewChartData(readings, c.location)); err != nil {
		slog.Error("chart render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("chart: write response failed", "error", err)
	}
}

func writeQueryError(w http.ResponseWriter, err error) {
	status := utils.StatusForError(err)
	if status == http.StatusBadRequest {
		utils.WriteError(w, status, err.Error())
		return
	}
	slog.Error("recent readings query failed", "error", err)
	utils.WriteError(w, status, "failed to load readings")
}
