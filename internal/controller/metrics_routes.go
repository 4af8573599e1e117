package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterMetricsRoutes(router *gin.Engine, handler http.Handler) {
	router.GET("/metrics", gin.WrapH(handler))
}
