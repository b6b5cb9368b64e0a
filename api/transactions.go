package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/harborbank/harbor/api/model"
	"github.com/harborbank/harbor/api/middleware"
)

// RecordTransfer executes a transfer synchronously and returns the sender's
// statement leg.
func (a Api) RecordTransfer(c *gin.Context) {
	var newTransfer model2.RecordTransfer
	if err := c.ShouldBindJSON(&newTransfer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := newTransfer.ValidateRecordTransfer(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	session := middleware.SessionFromContext(c)
	resp, err := a.harbor.RecordTransfer(c.Request.Context(), newTransfer.ToTransfer(session.IdentityID))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// QueueTransfer accepts a transfer for asynchronous processing. Validation of
// business rules happens in the worker; the response only acknowledges the
// enqueue.
func (a Api) QueueTransfer(c *gin.Context) {
	var newTransfer model2.RecordTransfer
	if err := c.ShouldBindJSON(&newTransfer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := newTransfer.ValidateRecordTransfer(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	session := middleware.SessionFromContext(c)
	if err := a.harbor.QueueTransfer(c.Request.Context(), newTransfer.ToTransfer(session.IdentityID)); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"reference": newTransfer.Reference, "status": "QUEUED"})
}

// GetTransferByRef resolves a transfer by the caller-supplied reference, for
// clients that submitted a transfer but never saw the response.
func (a Api) GetTransferByRef(c *gin.Context) {
	reference, passed := c.Params.Get("reference")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required. pass it in the route /:reference"})
		return
	}

	session := middleware.SessionFromContext(c)
	resp, err := a.harbor.GetOwnedTransactionByRef(c.Request.Context(), session.IdentityID, reference)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetTransaction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.harbor.GetTransaction(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	session := middleware.SessionFromContext(c)
	if resp.IdentityID != session.IdentityID && session.Role != "admin" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "transactions are only readable by their owner"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RequestDeposit files a deposit for admin validation.
func (a Api) RequestDeposit(c *gin.Context) {
	var newDeposit model2.RequestDeposit
	if err := c.ShouldBindJSON(&newDeposit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := newDeposit.ValidateRequestDeposit(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	session := middleware.SessionFromContext(c)
	resp, err := a.harbor.RequestDeposit(c.Request.Context(), session.IdentityID, newDeposit.AccountID,
		newDeposit.Reference, newDeposit.Amount, newDeposit.Description)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
