package webui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/L1nMay/homeports/internal/envdetect"
	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/scan"
)

func started(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "started"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"ts": time.Now().UTC(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st, err := s.store.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit %q must be a positive integer", raw))
			return
		}
		limit = n
	}

	runs, err := s.store.ListScanRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.RefreshGateway(r.Context()))
}

func (s *Server) handleNetworks(w http.ResponseWriter, _ *http.Request) {
	nets, err := envdetect.DetectLocalNetworks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nets)
}

func (s *Server) handleScanDevices(w http.ResponseWriter, _ *http.Request) {
	if err := s.runner.StartDeviceDiscovery(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	started(w)
}

func (s *Server) handleScanPorts(w http.ResponseWriter, r *http.Request) {
	addr, err := scan.ValidateAddress(mux.Vars(r)["ip"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := s.runner.StartPortScan(addr.String(), r.URL.Query().Get("mode")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	started(w)
}

func (s *Server) handleScanAll(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.StartFullDiscovery(r.URL.Query().Get("mode")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	started(w)
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": s.runner.CancelRunning()})
}

type pauseRequest struct {
	Paused *bool `json:"paused"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	want := true
	if req.Paused != nil {
		want = *req.Paused
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": s.runner.SetPaused(want)})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.State())
}

type streamView struct {
	model.ScanState
	model.LiveStream
}

func (s *Server) handleStream(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, streamView{
		ScanState:  s.runner.State(),
		LiveStream: s.runner.Live(),
	})
}

func (s *Server) handleSpeedList(w http.ResponseWriter, _ *http.Request) {
	profiles := make([]any, 0, len(s.cfg.Profiles))
	for _, name := range s.cfg.ProfileNames() {
		p, _ := s.cfg.Profile(name)
		profiles = append(profiles, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   s.runner.State().SpeedProfile,
		"profiles": profiles,
	})
}

type speedRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	req := speedRequest{Mode: s.cfg.SpeedProfile}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.runner.SetSpeedProfile(req.Mode); err != nil {
		writeJSON(w, statusFor(err), map[string]any{"success": false, "error": err.Error()})
		return
	}
	p, _ := s.cfg.Profile(req.Mode)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"mode":    p.Name,
		"message": fmt.Sprintf("switched to %s mode", p.Label),
	})
}

func (s *Server) deviceNames() map[string]string {
	names, err := s.store.Names()
	if err != nil {
		logger.Warnf("load device names: %v", err)
		return nil
	}
	return names
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Devices(s.deviceNames()))
}

type noteRequest struct {
	IP   string `json:"ip"`
	Name string `json:"name"`
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	addr, err := scan.ValidateAddress(req.IP)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if err := s.store.SetNote(addr.String(), req.Name); err != nil {
		logger.Errorf("save note for %s: %v", addr, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Disposition", "attachment; filename=scan_export.json")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"exported_at": time.Now().UTC(),
		"network":     s.runner.Network(),
		"devices":     s.runner.Devices(s.deviceNames()),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	if err := s.runner.ClearDevices(); err != nil {
		writeJSON(w, statusFor(err), map[string]any{"success": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// decodeOptional decodes a JSON body into v. An empty body leaves v as is.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
