package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/harborbank/harbor/api/model"
	"github.com/harborbank/harbor/api/middleware"
)

// QuoteLoan returns the amortized monthly payment for the requested terms
// without filing an application.
func (a Api) QuoteLoan(c *gin.Context) {
	var quote model2.QuoteLoan
	if err := c.ShouldBindJSON(&quote); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := quote.ValidateQuoteLoan(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	payment, err := a.harbor.QuoteMonthlyPayment(quote.Principal, quote.AnnualRate, quote.TermMonths)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"principal":       quote.Principal,
		"annual_rate":     quote.AnnualRate,
		"term_months":     quote.TermMonths,
		"monthly_payment": payment,
	})
}

func (a Api) ApplyForLoan(c *gin.Context) {
	var application model2.ApplyLoan
	if err := c.ShouldBindJSON(&application); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := application.ValidateApplyLoan(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	session := middleware.SessionFromContext(c)
	resp, err := a.harbor.ApplyForLoan(c.Request.Context(), application.ToLoan(session.IdentityID))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetMyLoans(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	resp, err := a.harbor.GetLoansByIdentity(c.Request.Context(), session.IdentityID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetLoan(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.harbor.GetLoan(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	session := middleware.SessionFromContext(c)
	if resp.IdentityID != session.IdentityID && session.Role != "admin" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "loans are only readable by their owner"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
