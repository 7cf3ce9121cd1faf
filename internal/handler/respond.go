package handler

import (
	"designlens/internal/middleware"

	"github.com/gin-gonic/gin"
)

// fail hands err to middleware.ErrorHandler, which picks the status.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func accountID(c *gin.Context) string {
	id, _ := middleware.AccountID(c)
	return id
}
