package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/harborbank/harbor/api/model"
	"github.com/harborbank/harbor/api/middleware"
)

// CreateIdentity registers a new customer. The registration lands PENDING
// and waits for back-office approval.
func (a Api) CreateIdentity(c *gin.Context) {
	var newIdentity model2.CreateIdentity
	if err := c.ShouldBindJSON(&newIdentity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := newIdentity.ValidateCreateIdentity(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.harbor.CreateIdentity(c.Request.Context(), newIdentity.ToIdentity())
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetIdentity returns an identity. Customers may only read themselves.
func (a Api) GetIdentity(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	session := middleware.SessionFromContext(c)
	if session.IdentityID != id && session.Role != "admin" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identities are only readable by their owner"})
		return
	}

	resp, err := a.harbor.GetIdentity(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
