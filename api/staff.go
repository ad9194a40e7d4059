package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pedalpoint/kiosk-backend/internal/middleware"
	"github.com/pedalpoint/kiosk-backend/staff"
)

// currentStaff resolves the authenticated subject to a staff row,
// provisioning one on first sight. On failure it writes the error response
// and returns ok=false.
func (a *API) currentStaff(c *gin.Context) (*staff.Staff, bool) {
	logger := middleware.GetLogger(c)

	authID, ok := middleware.GetAuthID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return nil, false
	}

	st, err := a.repos.Staff.GetStaffByAuthID(c, authID)
	if err == nil {
		if !st.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"code": "STAFF_INACTIVE", "message": "Staff account is deactivated"})
			return nil, false
		}
		return st, true
	}
	if !errors.Is(err, staff.ErrNotFound) {
		logger.ErrorContext(c, "failed to get staff", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}

	// First authenticated request for this subject. Pull the profile from
	// the identity provider when a token is on hand; fall back to a bare row.
	var name, email string
	if token := bearerToken(c); token != "" && a.auth != nil {
		if info, err := a.auth.GetUserInfo(c, token); err == nil {
			name, email = info.Name, info.Email
		} else {
			logger.WarnContext(c, "failed to fetch user info", "error", err)
		}
	}

	st, err = a.repos.Staff.CreateStaff(c, authID, name, email)
	if err != nil {
		logger.ErrorContext(c, "failed to provision staff", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}
	return st, true
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

type meResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

func (a *API) meHandler(c *gin.Context) {
	st, ok := a.currentStaff(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, meResponse{
		ID:       st.ID.String(),
		Name:     st.Name.String,
		Email:    st.Email.String,
		Role:     st.Role,
		IsActive: st.IsActive,
	})
}
