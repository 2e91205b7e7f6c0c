package server

import (
	"net/http"
	"time"

	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/middleware"
	"github.com/donnyesq/gamble/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionMaxAge is how long the address cookie lives.
const SessionMaxAge = 7 * 24 * time.Hour

// SessionHandler mirrors the wallet address into a cookie so server-rendered
// pages can skip wallet detection. The cookie is never trusted.
type SessionHandler struct {
	secure bool
	logger zerolog.Logger
}

// NewSessionHandler creates a session handler. secure sets the cookie's
// Secure flag.
func NewSessionHandler(secure bool, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		secure: secure,
		logger: logger.With().Str("handler", "session").Logger(),
	}
}

// SetAddressRequest is the body of POST /api/set-metamask.
type SetAddressRequest struct {
	Address string `json:"address" binding:"required"`
}

// SetAddress stores the address cookie.
// Route: POST /api/set-metamask
func (h *SessionHandler) SetAddress(c *gin.Context) {
	var req SetAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid request body"))
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AddressCookie, req.Address, int(SessionMaxAge.Seconds()), "/", "", h.secure, true)

	h.logger.Debug().Str("address", req.Address).Msg("Session address set")
	c.JSON(http.StatusCreated, types.MessageResponse{Message: "Successfully signed up"})
}

// RemoveAddress expires the address cookie.
// Route: GET /api/remove-metamask
func (h *SessionHandler) RemoveAddress(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AddressCookie, "", -1, "/", "", h.secure, true)

	h.logger.Debug().Msg("Session address removed")
	c.JSON(http.StatusOK, types.MessageResponse{Message: "Successfully signed out"})
}
