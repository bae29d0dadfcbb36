package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Altrii-recovery/Altrii/internal/metrics"
	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/profile"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleRegisterDevice(c *fiber.Ctx) error {
	var req struct {
		UDID   string `json:"udid"`
		UserID string `json:"userId"`
		Name   string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, http.StatusBadRequest, "malformed request")
	}
	if req.UDID == "" || req.UserID == "" {
		return s.fail(c, http.StatusBadRequest, "udid and userId are required")
	}
	device, err := s.store.GetDevice(c.Context(), req.UDID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return s.fail(c, http.StatusInternalServerError, err.Error())
		}
		device = &model.DeviceRecord{UDID: req.UDID}
	}
	device.UserID = req.UserID
	device.Name = req.Name
	if err := s.store.UpsertDevice(c.Context(), device); err != nil {
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(model.Success("device registered", device))
}

func (s *Server) handleListDevices(c *fiber.Ctx) error {
	devices, err := s.store.ListDevices(c.Context())
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(model.Success("ok", devices))
}

func (s *Server) handleDeviceStatus(c *fiber.Ctx) error {
	status, err := s.statusSvc.DeviceStatus(c.Context(), c.Params("udid"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.fail(c, http.StatusNotFound, "device not found")
		}
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(model.Success("ok", status))
}

func (s *Server) handleDeviceAudit(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize", "10"))
	filter := model.AuditFilter{
		UDID:     c.Params("udid"),
		Kind:     model.AuditKind(c.Query("kind")),
		Page:     page,
		PageSize: pageSize,
	}
	result, err := s.auditSvc.Query(c.Context(), filter)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(model.Success("ok", result))
}

func (s *Server) handleSendCommand(c *fiber.Ctx) error {
	var req struct {
		Type   string         `json:"type"`
		Params map[string]any `json:"params"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, http.StatusBadRequest, "malformed request")
	}
	requestType, ok := model.ParseRequestType(req.Type)
	if !ok {
		return s.fail(c, http.StatusBadRequest, fmt.Sprintf("unsupported command type %q", req.Type))
	}
	cmd, err := s.engine.Enqueue(c.Context(), c.Params("udid"), requestType, req.Params)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(model.Success("command enqueued", fiber.Map{
		"commandUUID": cmd.CommandUUID,
		"status":      cmd.Status,
	}))
}

func (s *Server) handleCancelCommand(c *fiber.Ctx) error {
	err := s.engine.CancelCommand(c.Context(), c.Params("udid"), c.Params("uuid"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.fail(c, http.StatusNotFound, "command not found")
		}
		return s.fail(c, http.StatusConflict, err.Error())
	}
	return c.JSON(model.Success("command cancelled", nil))
}

func (s *Server) handleVerifyDevice(c *fiber.Ctx) error {
	commands, err := s.engine.EnqueueVerification(c.Context(), c.Params("udid"))
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}
	uuids := make([]string, 0, len(commands))
	for _, cmd := range commands {
		uuids = append(uuids, cmd.CommandUUID)
	}
	return c.JSON(model.Success("verification enqueued", fiber.Map{
		"commandUUIDs": uuids,
	}))
}

func (s *Server) handleGenerateProfile(c *fiber.Ctx) error {
	var req struct {
		UDID          string       `json:"udid"`
		UserID        string       `json:"userId"`
		Policy        model.Policy `json:"policy"`
		SecurityLevel int          `json:"securityLevel"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, http.StatusBadRequest, "malformed request")
	}

	device, err := s.store.GetDevice(c.Context(), req.UDID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.fail(c, http.StatusNotFound, "device not found")
		}
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}

	doc, meta, err := s.builder.Build(req.UDID, req.Policy, req.SecurityLevel)
	if err != nil {
		return s.fail(c, http.StatusBadRequest, err.Error())
	}
	rendered, err := profile.Render(doc, s.signer)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}
	meta.Signed = rendered.Signed
	meta.SignedBytes = rendered.Data
	if err := s.store.SaveProfile(c.Context(), meta); err != nil {
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}
	metrics.ProfilesBuilt.Inc()

	// The profile encodes the level the device is now expected to satisfy;
	// reconciliation compares reported restrictions against it.
	device.SecurityLevel = req.SecurityLevel
	if err := s.store.UpsertDevice(c.Context(), device); err != nil {
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}

	ticket, err := s.registrar.IssueCode(c.Context(), rendered.Data, req.UDID, req.UserID, meta.ProfileUUID)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(model.Success("profile generated", fiber.Map{
		"code":        ticket.Code,
		"profileUUID": meta.ProfileUUID,
		"downloadUrl": fmt.Sprintf("%s/enroll/%s", s.cfg.Server.PublicURL, ticket.Code),
		"expiresAt":   ticket.ExpiresAt,
		"signed":      rendered.Signed,
	}))
}
