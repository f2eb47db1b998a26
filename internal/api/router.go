// Package api - Router setup
package api

import (
	"time"

	"github.com/aethra/oficina/internal/auth"
	"github.com/aethra/oficina/internal/config"
	"github.com/aethra/oficina/internal/validation"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg config.CORSConfig, handler *Handler, authHandler *AuthHandler, adminHandler *AdminHandler) (*gin.Engine, error) {
	if err := validation.RegisterGinValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(handler.logger))

	r.Use(cors.New(corsConfig(cfg)))

	r.GET("/api/health", handler.Health)

	// ==========================================================================
	// AUTH API
	// ==========================================================================
	authRoutes := r.Group("/api/auth")
	{
		authRoutes.POST("/registrar", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	authProtected := r.Group("/api/auth")
	authProtected.Use(handler.RequireAuthMiddleware())
	{
		authProtected.GET("/perfil", authHandler.GetPerfil)
		authProtected.PUT("/perfil", authHandler.UpdatePerfil)
		authProtected.PUT("/senha", authHandler.ChangePassword)
	}

	api := r.Group("/api")
	api.Use(handler.RequireAuthMiddleware())

	// ==========================================================================
	// CLIENTES
	// ==========================================================================
	clientes := api.Group("/clientes")
	{
		clientes.GET("", handler.PermissionMiddleware(auth.ResourceClientes, auth.ActionView), handler.ListClientes)
		clientes.POST("", handler.PermissionMiddleware(auth.ResourceClientes, auth.ActionCreate), handler.CreateCliente)
		clientes.POST("/buscar-ou-criar", handler.PermissionMiddleware(auth.ResourceClientes, auth.ActionCreate), handler.BuscarOuCriarCliente)
		clientes.GET("/exportar", handler.PermissionMiddleware(auth.ResourceClientes, auth.ActionExport), handler.ExportClientes)
		clientes.GET("/:id", handler.PermissionMiddleware(auth.ResourceClientes, auth.ActionView), handler.GetCliente)
		clientes.PUT("/:id", handler.PermissionMiddleware(auth.ResourceClientes, auth.ActionEdit), handler.UpdateCliente)
		clientes.DELETE("/:id", handler.PermissionMiddleware(auth.ResourceClientes, auth.ActionDelete), handler.DeleteCliente)
		clientes.GET("/:id/orcamentos", handler.PermissionMiddleware(auth.ResourceOrcamentos, auth.ActionView), handler.ListClienteOrcamentos)
		clientes.GET("/:id/historico", handler.PermissionMiddleware(auth.ResourceHistorico, auth.ActionView), handler.ClienteHistorico)
	}

	// ==========================================================================
	// ORCAMENTOS
	// ==========================================================================
	orcamentos := api.Group("/orcamentos")
	{
		orcamentos.GET("", handler.PermissionMiddleware(auth.ResourceOrcamentos, auth.ActionView), handler.ListOrcamentos)
		orcamentos.POST("", handler.PermissionMiddleware(auth.ResourceOrcamentos, auth.ActionCreate), handler.CreateOrcamento)
		orcamentos.GET("/exportar", handler.PermissionMiddleware(auth.ResourceOrcamentos, auth.ActionExport), handler.ExportOrcamentos)
		orcamentos.GET("/:id", handler.PermissionMiddleware(auth.ResourceOrcamentos, auth.ActionView), handler.GetOrcamento)
		orcamentos.PUT("/:id", handler.PermissionMiddleware(auth.ResourceOrcamentos, auth.ActionEdit), handler.UpdateOrcamento)
		orcamentos.DELETE("/:id", handler.PermissionMiddleware(auth.ResourceOrcamentos, auth.ActionDelete), handler.DeleteOrcamento)
		orcamentos.PATCH("/:id/status", handler.PermissionMiddleware(auth.ResourceOrcamentos, auth.ActionEdit), handler.UpdateOrcamentoStatus)
		orcamentos.POST("/:id/duplicar", handler.PermissionMiddleware(auth.ResourceOrcamentos, auth.ActionCreate), handler.DuplicarOrcamento)
		orcamentos.GET("/:id/historico", handler.PermissionMiddleware(auth.ResourceHistorico, auth.ActionView), handler.OrcamentoHistorico)
	}

	// ==========================================================================
	// DADOS DA EMPRESA
	// ==========================================================================
	api.GET("/dados-empresa", handler.PermissionMiddleware(auth.ResourceDadosEmpresa, auth.ActionView), handler.GetDadosEmpresa)
	api.PUT("/dados-empresa", handler.RequireAdminMiddleware(), handler.UpdateDadosEmpresa)

	// ==========================================================================
	// USUARIOS - admin and developer only
	// ==========================================================================
	usuarios := api.Group("/usuarios")
	usuarios.Use(handler.RequireAdminMiddleware())
	{
		usuarios.GET("", adminHandler.ListUsers)
		usuarios.POST("", adminHandler.CreateUser)
		usuarios.GET("/:id", adminHandler.GetUser)
		usuarios.PUT("/:id", adminHandler.UpdateUser)
		usuarios.DELETE("/:id", adminHandler.DeleteUser)
		usuarios.GET("/:id/historico", adminHandler.UserHistory)
	}

	return r, nil
}

// corsConfig builds the CORS policy. An empty list or "*" allows any
// origin; otherwise only the listed ones.
func corsConfig(cfg config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", headerRequestID},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition", headerRequestID},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			cc.AllowAllOrigins = true
			// browsers refuse credentials with a wildcard origin
			cc.AllowCredentials = false
			return cc
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
		return cc
	}
	cc.AllowOrigins = cfg.AllowedOrigins
	return cc
}
