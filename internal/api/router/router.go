package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"gitbridge/internal/api/handler"
	"gitbridge/internal/api/middleware"
	"gitbridge/internal/pkg/config"
	"gitbridge/internal/repository"
	"gitbridge/internal/service"
)

// Setup 设置路由
func Setup(cfg *config.Config, db *gorm.DB) *gin.Engine {
	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Swagger API 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 初始化Repository
	secretsRepo := repository.NewSecretsRepository(db, cfg.Crypto.AESKey)

	// 初始化Service
	validator := service.NewTokenValidator(cfg.Git.SSOHost)
	secretsService := service.NewSecretsService(secretsRepo, validator)
	repoService := service.NewRepoService(secretsRepo, cfg.Git.SSOHost)

	// 初始化Handler
	secretsHandler := handler.NewSecretsHandler(secretsService)
	integrationHandler := handler.NewIntegrationHandler(secretsService)
	repositoryHandler := handler.NewRepositoryHandler(repoService)

	// 业务路由，统一经过前置认证
	api := r.Group("/api")
	api.Use(middleware.ForwardAuthMiddleware(&cfg.Auth))
	{
		// 旧版平台Token
		api.POST("/add-git-providers", secretsHandler.AddGitProviders)
		api.POST("/unset-provider-tokens", secretsHandler.UnsetProviderTokens)

		// 集成
		api.GET("/integrations", integrationHandler.List)
		api.POST("/integrations", integrationHandler.Create)
		api.PUT("/integrations/:id", integrationHandler.Update)
		api.DELETE("/integrations/:id", integrationHandler.Delete)

		// 自定义密钥
		api.GET("/secrets", secretsHandler.ListCustomSecrets)
		api.POST("/secrets", secretsHandler.CreateCustomSecret)
		api.PUT("/secrets/:id", secretsHandler.UpdateCustomSecret)
		api.DELETE("/secrets/:id", secretsHandler.DeleteCustomSecret)

		// 仓库读取
		api.GET("/repositories", repositoryHandler.List)
		api.GET("/repositories/search", repositoryHandler.Search)
		api.GET("/repositories/:owner/:repo/branches", repositoryHandler.Branches)
		api.GET("/repositories/:owner/:repo/microagents", repositoryHandler.Microagents)
		api.GET("/repositories/:owner/:repo/microagents/content", repositoryHandler.MicroagentContent)
		api.GET("/suggested-tasks", repositoryHandler.SuggestedTasks)
	}

	return r
}
