package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nerrad567/plaf203-core/internal/session"
)

// deviceAction runs a bodiless device request and logs who asked for it.
func (s *Server) deviceAction(name string, action func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(r.Context()); err != nil {
			writeFeederError(w, err)
			return
		}
		s.logger.Info("device action requested", "action", name, "subject", subjectFromContext(r.Context()))
		writeAccepted(w)
	}
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	s.deviceAction("reboot", s.feeder.Reboot)(w, r)
}

func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	s.deviceAction("factory_reset", s.feeder.FactoryReset)(w, r)
}

func (s *Server) handleReconnectWifi(w http.ResponseWriter, r *http.Request) {
	s.deviceAction("wifi_reconnect", s.feeder.ReconnectWifi)(w, r)
}

func (s *Server) handleFormatSDCard(w http.ResponseWriter, r *http.Request) {
	s.deviceAction("format_sd_card", s.feeder.FormatSDCard)(w, r)
}

// handleUpgradeFirmware starts an OTA upgrade.
//
// Body: {"type": "...", "url": "https://...", "version": "2.1.0", "md5": "..."}
func (s *Server) handleUpgradeFirmware(w http.ResponseWriter, r *http.Request) {
	var fw session.FirmwareUpgrade
	if err := json.NewDecoder(r.Body).Decode(&fw); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.deviceAction("firmware_upgrade", func(ctx context.Context) error {
		return s.feeder.UpgradeFirmware(ctx, fw)
	})(w, r)
}

// handleChangeWifi moves the device to another network.
//
// Body: {"ssid": "home", "password": "..."}
func (s *Server) handleChangeWifi(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SSID     string `json:"ssid"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.deviceAction("wifi_change", func(ctx context.Context) error {
		return s.feeder.ChangeWifi(ctx, body.SSID, body.Password)
	})(w, r)
}
