package middleware

import (
	"net/http"
	"strconv"

	"Agora_Community/internal/pkg/apperr"
	"Agora_Community/internal/service"

	"github.com/gin-gonic/gin"
)

// CommunityAdmin 管理接口守卫：创建者或 approved 的 admin 成员放行
func CommunityAdmin(svc *service.MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || communityID == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid id"})
			return
		}

		userIDAny, ok := c.Get(ContextUserIDKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}
		userID := userIDAny.(uint64)

		isAdmin, err := svc.IsCommunityAdmin(c.Request.Context(), communityID, userID)
		if err != nil {
			c.AbortWithStatusJSON(apperr.Status(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "admin access required"})
			return
		}
		c.Next()
	}
}
