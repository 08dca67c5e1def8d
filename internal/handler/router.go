package handler

import (
	"github.com/gin-gonic/gin"

	"docqa-go/internal/middleware"
	"docqa-go/internal/service"
	"docqa-go/pkg/metrics"
)

// RouterDeps 汇集注册路由所需的服务。
type RouterDeps struct {
	UserService   service.UserService
	IngestService service.IngestService
	QueryService  service.QueryService
	Metrics       *metrics.Metrics
	// ProtectDocuments 为 true 时文档与问答接口需要登录。
	ProtectDocuments bool
}

// NewRouter 创建 Gin 引擎并注册全部路由。
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), middleware.Metrics(d.Metrics), gin.Recovery())

	userHandler := NewUserHandler(d.UserService)
	documentHandler := NewDocumentHandler(d.IngestService)
	queryHandler := NewQueryHandler(d.QueryService)
	auth := middleware.AuthMiddleware(d.UserService)

	r.GET("/", Root)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// 用户路由，无需认证
	r.GET("/users", userHandler.ListUsers)
	user := r.Group("/user")
	{
		user.POST("/create", userHandler.Register)
		user.POST("/login", userHandler.Login)

		// 需要认证的路由
		authed := user.Group("")
		authed.Use(auth)
		{
			authed.GET("/profile", userHandler.GetProfile)
			authed.POST("/logout", userHandler.Logout)
		}
	}

	// 文档与问答路由
	docs := r.Group("")
	if d.ProtectDocuments {
		docs.Use(auth)
	}
	{
		docs.POST("/upload", documentHandler.Upload)
		docs.GET("/documents", documentHandler.ListDocuments)
		docs.POST("/query", queryHandler.Ask)
	}
	return r
}
