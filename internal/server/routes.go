package server

import "github.com/gin-gonic/gin"

// NewRouter configures and returns the gin engine with all application
// routes: health, websocket endpoint, block management, uploads, and history.
func NewRouter(gw *Gateway) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", gw.Health)
	router.GET("/ws", gw.Websocket)
	router.POST("/block", gw.Block)
	router.POST("/unblock", gw.Unblock)
	router.POST("/upload", gw.Upload)
	router.GET("/messages", gw.History)

	return router
}
