package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/middleware"
	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/repository"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
)

// RouterDeps bundles everything route registration needs.
type RouterDeps struct {
	APIPrefix string

	AuthService *service.AuthService
	Tenants     *service.TenantContextService
	Terms       *service.TermContextService
	Metrics     *service.MetricsService
	Users       *repository.UserRepository

	Auth          *AuthHandler
	Organizations *OrganizationHandler
	TermRegistry  *TermHandler
	Students      *StudentHandler
	Classes       *ClassHandler
	Enrollments   *EnrollmentHandler
	Grades        *GradeHandler
	Fees          *FeeHandler
	Announcements *AnnouncementHandler
	Consistency   *ConsistencyHandler
}

// RegisterRoutes mounts the API surface. Three zones: public auth routes,
// the platform admin zone (JWT plus a PLATFORM_ADMIN guard, no tenancy
// resolution since it spans organizations), and the tenant zone where every
// route runs behind the tenancy middleware and carries a resolved scope.
func RegisterRoutes(r *gin.Engine, deps RouterDeps) {
	api := r.Group(deps.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
		auth.POST("/logout", middleware.JWT(deps.AuthService), deps.Auth.Logout)
	}

	admin := api.Group("/admin",
		middleware.JWT(deps.AuthService),
		middleware.RequireRoles(models.RolePlatformAdmin),
	)
	{
		admin.GET("/organizations", deps.Organizations.List)
		admin.POST("/organizations", deps.Organizations.Create)
		admin.GET("/organizations/:selector", deps.Organizations.Get)
		admin.PUT("/organizations/:selector", deps.Organizations.Update)
		admin.POST("/organizations/bulk-status",
			middleware.Audit(deps.Users, models.AuditActionBulkOrgStatus, "organization"),
			deps.Organizations.BulkStatus)

		admin.GET("/consistency/report", deps.Consistency.Report)
		admin.GET("/consistency/export", deps.Consistency.Export)
		admin.POST("/consistency/archive", deps.Consistency.Archive)
		admin.GET("/consistency/download", deps.Consistency.Download)
	}

	tenant := api.Group("",
		middleware.JWT(deps.AuthService),
		middleware.Tenancy(deps.Tenants, deps.Terms, deps.Metrics),
	)
	{
		terms := tenant.Group("/terms")
		{
			terms.GET("", deps.TermRegistry.List)
			terms.GET("/current", deps.TermRegistry.Current)
			terms.GET("/:id", deps.TermRegistry.Get)

			termWriters := middleware.RequireRoles(models.RolePlatformAdmin, models.RoleOwner)
			terms.POST("", termWriters, deps.TermRegistry.Create)
			terms.PUT("/:id", termWriters, deps.TermRegistry.Update)
			terms.DELETE("/:id", termWriters, deps.TermRegistry.Delete)
			terms.POST("/promote", termWriters,
				middleware.Audit(deps.Users, models.AuditActionTermPromotion, "term"),
				deps.TermRegistry.Promote)
		}

		students := tenant.Group("/students")
		{
			students.GET("", deps.Students.List)
			students.GET("/:id", deps.Students.Get)
			students.POST("", deps.Students.Create)
			students.PUT("/:id", deps.Students.Update)
			students.DELETE("/:id", deps.Students.Deactivate)
			students.POST("/guardians", deps.Students.LinkGuardian)
		}

		classes := tenant.Group("/classes")
		{
			classes.GET("", deps.Classes.List)
			classes.GET("/assignments/mine", deps.Classes.MyAssignments)
			classes.POST("/assignments", deps.Classes.AssignTeacher)
			classes.DELETE("/assignments/:id", deps.Classes.UnassignTeacher)
			classes.GET("/:id", deps.Classes.Get)
			classes.POST("", deps.Classes.Create)
			classes.PUT("/:id", deps.Classes.Update)
			classes.DELETE("/:id", deps.Classes.Deactivate)
		}

		enrollments := tenant.Group("/enrollments")
		{
			enrollments.GET("", deps.Enrollments.List)
			enrollments.GET("/:id", deps.Enrollments.Get)
			enrollments.POST("", deps.Enrollments.Create)
			enrollments.POST("/:id/close", deps.Enrollments.Close)
		}

		grades := tenant.Group("/grades")
		{
			grades.GET("", deps.Grades.List)
			grades.GET("/:id", deps.Grades.Get)
			grades.POST("", deps.Grades.Create)
			grades.PUT("/:id", deps.Grades.Update)
			grades.DELETE("/:id", deps.Grades.Delete)
		}

		fees := tenant.Group("/fees")
		{
			fees.GET("/structures", deps.Fees.ListStructures)
			fees.POST("/structures", deps.Fees.CreateStructure)
			fees.GET("/assignments", deps.Fees.ListAssignments)
			fees.POST("/assignments/bulk", deps.Fees.BulkAssign)
			fees.GET("/assignments/:id/payments", deps.Fees.ListPayments)
			fees.POST("/payments", deps.Fees.RecordPayment)
		}

		announcements := tenant.Group("/announcements")
		{
			announcements.GET("", deps.Announcements.List)
			announcements.GET("/:id", deps.Announcements.Get)
			announcements.POST("", deps.Announcements.Create)
			announcements.DELETE("/:id", deps.Announcements.Delete)
		}
	}
}
