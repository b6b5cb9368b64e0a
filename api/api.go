package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborbank/harbor"
	"github.com/harborbank/harbor/api/middleware"
	"github.com/harborbank/harbor/config"
	"github.com/harborbank/harbor/internal/apierror"
)

type Api struct {
	harbor *harbor.Harbor
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/identities", a.CreateIdentity)

	authed := router.Group("/", middleware.SessionMiddleware(a.harbor))
	{
		authed.GET("/identities/:id", a.GetIdentity)

		authed.POST("/accounts", a.CreateAccount)
		authed.GET("/accounts", a.GetMyAccounts)
		authed.GET("/accounts/:id", a.GetAccount)
		authed.GET("/accounts/:id/statement", a.GetStatement)

		authed.POST("/transfers", a.RecordTransfer)
		authed.POST("/transfers/queue", a.QueueTransfer)
		authed.GET("/transfers/:reference", a.GetTransferByRef)
		authed.GET("/transactions/:id", a.GetTransaction)

		authed.POST("/deposits", a.RequestDeposit)

		authed.POST("/loans/quote", a.QuoteLoan)
		authed.POST("/loans", a.ApplyForLoan)
		authed.GET("/loans", a.GetMyLoans)
		authed.GET("/loans/:id", a.GetLoan)
	}

	admin := router.Group("/admin", middleware.SessionMiddleware(a.harbor), middleware.RequireAdmin())
	{
		admin.GET("/identities", a.ListIdentitiesByApproval)
		admin.POST("/identities/:id/approve", a.ApproveIdentity)
		admin.POST("/identities/:id/reject", a.RejectIdentity)

		admin.GET("/accounts", a.ListAccountsByStatus)
		admin.POST("/accounts/:id/approve", a.ApproveAccount)
		admin.POST("/accounts/:id/freeze", a.FreezeAccount)
		admin.POST("/accounts/:id/unfreeze", a.UnfreezeAccount)
		admin.POST("/accounts/:id/close", a.CloseAccount)

		admin.POST("/deposits/:id/validate", a.ValidateDeposit)
		admin.POST("/deposits/:id/reject", a.RejectDeposit)

		admin.GET("/loans", a.ListLoansByStatus)
		admin.POST("/loans/:id/approve", a.ApproveLoan)
		admin.POST("/loans/:id/reject", a.RejectLoan)

		admin.POST("/payments/:id/settle", a.SettlePayment)
		admin.POST("/payments/:id/fail", a.FailPayment)
		admin.POST("/payments/sweep", a.SweepPendingPayments)

		admin.GET("/audit", a.ListAuditEntries)
		admin.GET("/reports/overview", a.GetOverviewReport)
	}

	return a.router
}

func NewAPI(h *harbor.Harbor) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{harbor: h, router: r}
}

// handleError writes a typed error with its mapped status. Untyped errors
// come out as 500s without leaking internals.
func handleError(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	if apiErr, ok := err.(apierror.APIError); ok {
		c.JSON(status, gin.H{"error": apiErr.Message, "code": apiErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
