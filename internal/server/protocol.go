package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Altrii-recovery/Altrii/internal/enroll"
	"github.com/Altrii-recovery/Altrii/internal/mdm"
	"github.com/gofiber/fiber/v2"
	"github.com/groob/plist"
)

const profileContentType = "application/x-apple-aspen-config"

// handleCheckin processes Authenticate, TokenUpdate and CheckOut messages.
// Success returns an empty 200 body per the protocol.
func (s *Server) handleCheckin(c *fiber.Ctx) error {
	var msg mdm.CheckinMessage
	if err := plist.Unmarshal(c.Body(), &msg); err != nil {
		return c.SendStatus(http.StatusBadRequest)
	}
	if err := s.engine.HandleCheckin(c.Context(), &msg); err != nil {
		switch {
		case errors.Is(err, mdm.ErrUnknownDevice), errors.Is(err, mdm.ErrNoSession):
			return c.SendStatus(http.StatusUnauthorized)
		default:
			return c.SendStatus(http.StatusInternalServerError)
		}
	}
	return c.SendStatus(http.StatusOK)
}

// handleCommand processes command acknowledgements and returns the next
// queued command, or an empty body when the queue is drained.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	raw := append([]byte(nil), c.Body()...)
	var ack mdm.AckMessage
	if err := plist.Unmarshal(raw, &ack); err != nil {
		return c.SendStatus(http.StatusBadRequest)
	}
	next, err := s.engine.HandleCommandResponse(c.Context(), &ack, raw)
	if err != nil {
		switch {
		case errors.Is(err, mdm.ErrUnknownCommand):
			return c.SendStatus(http.StatusBadRequest)
		default:
			return c.SendStatus(http.StatusInternalServerError)
		}
	}
	if next == nil {
		return c.SendStatus(http.StatusOK)
	}
	body, err := plist.MarshalIndent(mdm.Envelope(next), "  ")
	if err != nil {
		return c.SendStatus(http.StatusInternalServerError)
	}
	c.Set(fiber.HeaderContentType, "application/xml")
	return c.Status(http.StatusOK).Send(body)
}

// handleEnrollDownload resolves a single-use enrollment code to the profile
// document.
func (s *Server) handleEnrollDownload(c *fiber.Ctx) error {
	profileBytes, err := s.registrar.Resolve(c.Context(), c.Params("code"))
	if err != nil {
		switch {
		case errors.Is(err, enroll.ErrExpired):
			return c.SendStatus(http.StatusGone)
		case errors.Is(err, enroll.ErrInvalidCode):
			return c.SendStatus(http.StatusNotFound)
		default:
			return c.SendStatus(http.StatusInternalServerError)
		}
	}
	c.Set(fiber.HeaderContentType, profileContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "altrii-supervision.mobileconfig"))
	return c.Status(http.StatusOK).Send(profileBytes)
}
