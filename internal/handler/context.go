package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MemberID extracts the authenticated member's ID set by the auth
// middleware.
func MemberID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString("memberID"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
