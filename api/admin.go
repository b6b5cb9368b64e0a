package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	model2 "github.com/harborbank/harbor/api/model"
	"github.com/harborbank/harbor/api/middleware"
	"github.com/harborbank/harbor/model"
)

func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func decision(c *gin.Context) model2.Decision {
	var d model2.Decision
	// The body is optional on admin decisions.
	_ = c.ShouldBindJSON(&d)
	return d
}

func (a Api) ListIdentitiesByApproval(c *gin.Context) {
	limit, offset := pagination(c)
	status := c.DefaultQuery("status", model.ApprovalPending)
	resp, err := a.harbor.GetIdentitiesByApproval(c.Request.Context(), status, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) ApproveIdentity(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if err := a.harbor.ApproveIdentity(c.Request.Context(), session.IdentityID, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "APPROVED"})
}

func (a Api) RejectIdentity(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if err := a.harbor.RejectIdentity(c.Request.Context(), session.IdentityID, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "REJECTED"})
}

func (a Api) ListAccountsByStatus(c *gin.Context) {
	limit, offset := pagination(c)
	status := c.DefaultQuery("status", model.AccountPending)
	resp, err := a.harbor.GetAccountsByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) ApproveAccount(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if err := a.harbor.ApproveAccount(c.Request.Context(), session.IdentityID, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.AccountActive})
}

func (a Api) FreezeAccount(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	d := decision(c)
	if err := a.harbor.FreezeAccount(c.Request.Context(), session.IdentityID, c.Param("id"), d.Reason); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.AccountFrozen})
}

func (a Api) UnfreezeAccount(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if err := a.harbor.UnfreezeAccount(c.Request.Context(), session.IdentityID, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.AccountActive})
}

func (a Api) CloseAccount(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if err := a.harbor.CloseAccount(c.Request.Context(), session.IdentityID, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.AccountClosed})
}

func (a Api) ValidateDeposit(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	resp, err := a.harbor.ValidateDeposit(c.Request.Context(), session.IdentityID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) RejectDeposit(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	d := decision(c)
	if err := a.harbor.RejectDeposit(c.Request.Context(), session.IdentityID, c.Param("id"), d.Reason); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.StatusRejected})
}

func (a Api) ListLoansByStatus(c *gin.Context) {
	limit, offset := pagination(c)
	status := c.DefaultQuery("status", model.LoanPending)
	resp, err := a.harbor.GetLoansByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) ApproveLoan(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	resp, err := a.harbor.ApproveLoan(c.Request.Context(), session.IdentityID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) RejectLoan(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	d := decision(c)
	if err := a.harbor.RejectLoan(c.Request.Context(), session.IdentityID, c.Param("id"), d.Reason); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.LoanRejected})
}

func (a Api) SettlePayment(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if err := a.harbor.SettlePayment(c.Request.Context(), session.IdentityID, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.StatusApplied})
}

func (a Api) FailPayment(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	d := decision(c)
	resp, err := a.harbor.FailPayment(c.Request.Context(), session.IdentityID, c.Param("id"), d.Reason)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) SweepPendingPayments(c *gin.Context) {
	flagged, err := a.harbor.SweepPendingPayments(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": flagged})
}

func (a Api) ListAuditEntries(c *gin.Context) {
	limit, offset := pagination(c)
	resp, err := a.harbor.GetAuditEntries(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetOverviewReport(c *gin.Context) {
	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = parsed
	}

	resp, err := a.harbor.GetOverviewReport(c.Request.Context(), from, to)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
