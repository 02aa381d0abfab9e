package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MarkoPoloResearchLab/leadloop/internal/httpapi"
)

const (
	publicRouteLeads         = "/api/leads"
	publicRouteLeadDraft     = "/api/leads/draft"
	operatorRouteLogin       = "/api/operator/login"
	operatorRouteLogout      = "/api/operator/logout"
	adminRoutePrefix         = "/api/admin"
	adminRouteFlags          = "/flags"
	adminRouteFlagsEmergency = "/flags/emergency"
	adminRouteFlagsReset     = "/flags/reset"
	adminRouteFlagToggle     = "/flags/:name/toggle"
	adminRouteFlagEnable     = "/flags/:name/enable"
	adminRouteFlagDisable    = "/flags/:name/disable"
	adminRouteNotifications  = "/notifications"
	adminRouteIngest         = "/ingest"
	adminRouteClients        = "/clients"
	adminRouteClientStats    = "/clients/stats"
	adminRouteClient         = "/clients/:id"
	adminRouteClientStatus   = "/clients/:id/status"
	adminRouteInteractions   = "/clients/:id/interactions"
	adminRouteAuthorizations = "/authorizations"
	adminRouteAuthorization  = "/authorizations/:id"
	adminRouteIdentity       = "/identity"
	adminRouteQueue          = "/queues/:name"
	adminRouteDocument       = "/documents/:key"
	adminRouteEvents         = "/events"
	routeMetrics             = "/metrics"
	routeHealth              = "/healthz"
	corsOriginWildcard       = "*"
	corsHeaderAuthorization  = "Authorization"
	corsHeaderContentType    = "Content-Type"
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType, httpapi.HeaderDraftToken}
	corsExposedHeaders = []string{corsHeaderContentType, httpapi.HeaderDraftToken}
)

func registerPublicRoutes(router *gin.Engine, intakeHandlers *httpapi.IntakeHandlers, allowedOrigins []string) {
	publicGroup := router.Group("/")
	publicGroup.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	publicGroup.OPTIONS(publicRouteLeads, preflight)
	publicGroup.OPTIONS(publicRouteLeadDraft, preflight)
	publicGroup.POST(publicRouteLeads, intakeHandlers.SubmitLead)
	publicGroup.GET(publicRouteLeadDraft, intakeHandlers.LoadDraft)
	publicGroup.PUT(publicRouteLeadDraft, intakeHandlers.SaveDraft)
	publicGroup.DELETE(publicRouteLeadDraft, intakeHandlers.ClearDraft)
}

// preflight gives the CORS middleware an OPTIONS route to answer on.
func preflight(context *gin.Context) {
	context.Status(http.StatusNoContent)
}

func registerOperatorRoutes(
	router *gin.Engine,
	operatorAuth *httpapi.OperatorAuth,
	adminHandlers *httpapi.AdminHandlers,
	eventStream *httpapi.EventStream,
) {
	router.POST(operatorRouteLogin, operatorAuth.Login)
	router.POST(operatorRouteLogout, operatorAuth.Logout)

	adminGroup := router.Group(adminRoutePrefix)
	adminGroup.Use(operatorAuth.RequireOperatorJSON())
	adminGroup.GET(adminRouteFlags, adminHandlers.FlagStatus)
	adminGroup.POST(adminRouteFlagsEmergency, adminHandlers.EmergencyMode)
	adminGroup.POST(adminRouteFlagsReset, adminHandlers.ResetFlags)
	adminGroup.POST(adminRouteFlagToggle, adminHandlers.ToggleFlag)
	adminGroup.POST(adminRouteFlagEnable, adminHandlers.EnableFlag)
	adminGroup.POST(adminRouteFlagDisable, adminHandlers.DisableFlag)
	adminGroup.GET(adminRouteNotifications, adminHandlers.ListNotifications)
	adminGroup.POST(adminRouteIngest, adminHandlers.Ingest)
	adminGroup.GET(adminRouteClients, adminHandlers.ListClients)
	adminGroup.GET(adminRouteClientStats, adminHandlers.ClientStats)
	adminGroup.GET(adminRouteClient, adminHandlers.GetClient)
	adminGroup.PATCH(adminRouteClientStatus, adminHandlers.UpdateClientStatus)
	adminGroup.POST(adminRouteInteractions, adminHandlers.AppendInteraction)
	adminGroup.GET(adminRouteAuthorizations, adminHandlers.ListAuthorizations)
	adminGroup.POST(adminRouteAuthorization, adminHandlers.ResolveAuthorization)
	adminGroup.GET(adminRouteIdentity, adminHandlers.IdentityStatus)
	adminGroup.GET(adminRouteQueue, adminHandlers.ListQueue)
	adminGroup.GET(adminRouteDocument, adminHandlers.GetDocument)
	adminGroup.PUT(adminRouteDocument, adminHandlers.PutDocument)
	adminGroup.GET(adminRouteEvents, eventStream.Stream)
}

func registerOperationalRoutes(router *gin.Engine) {
	router.GET(routeMetrics, gin.WrapH(promhttp.Handler()))
	router.GET(routeHealth, func(context *gin.Context) {
		context.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
