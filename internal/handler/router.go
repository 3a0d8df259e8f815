package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/middleware"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/repository"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/service"
)

// Router wires every handler onto the gin engine.
type Router struct {
	auth     *service.AuthService
	metrics  *service.MetricsService
	audit    *repository.AuditRepository
	roster   *RosterHandler
	drafts   *DraftHandler
	imports  *ImportHandler
	exports  *ExportHandler
	accounts *AccountHandler
	health   *MetricsHandler
}

// NewRouter constructs Router.
func NewRouter(
	auth *service.AuthService,
	metrics *service.MetricsService,
	audit *repository.AuditRepository,
	roster *RosterHandler,
	drafts *DraftHandler,
	imports *ImportHandler,
	exports *ExportHandler,
	accounts *AccountHandler,
	health *MetricsHandler,
) *Router {
	return &Router{
		auth:     auth,
		metrics:  metrics,
		audit:    audit,
		roster:   roster,
		drafts:   drafts,
		imports:  imports,
		exports:  exports,
		accounts: accounts,
		health:   health,
	}
}

// Register mounts all routes under the given prefix.
func (r *Router) Register(engine *gin.Engine, prefix string) {
	engine.GET("/health", r.health.Health)
	engine.GET("/ready", r.health.Ready)
	engine.GET("/metrics", r.health.Prometheus)
	engine.GET("/exports/download", r.exports.Download)

	api := engine.Group(prefix)
	api.Use(middleware.Metrics(r.metrics))
	api.Use(middleware.JWT(r.auth))

	courses := api.Group("/courses/:id")
	{
		courses.POST("/enrollments", middleware.Audit(r.audit, "enrollment.reconcile", "enrollment"), r.roster.Enroll)
		courses.POST("/enrollments/batch", middleware.Audit(r.audit, "enrollment.reconcile_batch", "enrollment"), r.roster.EnrollBatch)
		courses.DELETE("/enrollments", middleware.Audit(r.audit, "enrollment.remove", "enrollment"), r.roster.Remove)
		courses.GET("/roster", r.roster.List)
		courses.GET("/roster/export", r.exports.Roster)
		courses.POST("/roster/export/async", middleware.Audit(r.audit, "export.queue", "export"), r.exports.RosterAsync)

		courses.POST("/drafts", middleware.Audit(r.audit, "draft.save", "draft"), r.drafts.Save)
		courses.GET("/drafts", r.drafts.List)
		courses.POST("/drafts/match", r.drafts.Match)

		courses.POST("/imports/text", middleware.Audit(r.audit, "import.text", "draft"), r.imports.Text)
		courses.POST("/imports/spreadsheet", middleware.Audit(r.audit, "import.spreadsheet", "draft"), r.imports.Spreadsheet)
		courses.POST("/imports/enroll", middleware.Audit(r.audit, "import.enroll", "enrollment"), r.imports.Enroll)
	}

	api.POST("/institutions/:id/admins", middleware.Audit(r.audit, "institution_admin.grant", "institution"), r.roster.GrantInstitutionAdmin)
	api.DELETE("/institutions/:id/admins/:email", middleware.Audit(r.audit, "institution_admin.prune", "institution"), r.roster.RemoveInstitutionAdmin)

	accounts := api.Group("/accounts")
	{
		accounts.POST("", middleware.Audit(r.audit, "account.create", "account"), r.accounts.Create)
		accounts.GET("", r.accounts.List)
	}
}
