package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"webauthz/pkg/logging"
	"webauthz/pkg/webauthz"
)

type startNegotiationRequest struct {
	WWWAuthenticate string `json:"www_authenticate" binding:"required"`
	ResourceURI     string `json:"resource_uri" binding:"required"`
	Context         string `json:"context"`
}

type exchangeRequest struct {
	ClientID    string `json:"client_id" form:"client_id" binding:"required"`
	ClientState string `json:"client_state" form:"client_state" binding:"required"`
	GrantToken  string `json:"grant_token" form:"grant_token"`
	Refresh     bool   `json:"refresh"`
}

type tokenResponse struct {
	AccessToken         string     `json:"access_token"`
	AccessTokenNotAfter *time.Time `json:"access_token_not_after,omitempty"`
}

func (s *Server) startNegotiation(c *gin.Context) {
	var req startNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge := webauthz.ParseChallengeHeader(req.WWWAuthenticate)
	if challenge == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no webauthz challenge in www_authenticate"})
		return
	}
	challenge.ResourceURI = req.ResourceURI
	challenge.UserID = userID(c)

	neg, err := s.client.StartNegotiation(c.Request.Context(), challenge, req.Context)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, neg)
}

func (s *Server) getNegotiation(c *gin.Context) {
	view, err := s.client.GetNegotiation(c.Request.Context(), c.Param("client_state"), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// grant is the grant redirect target registered with authorization servers.
func (s *Server) grant(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.GrantToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "grant_token is required"})
		return
	}
	s.doExchange(c, req)
}

func (s *Server) exchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.doExchange(c, req)
}

func (s *Server) doExchange(c *gin.Context, req exchangeRequest) {
	result, err := s.client.Exchange(c.Request.Context(), webauthz.ExchangeRequest{
		ClientID:    req.ClientID,
		ClientState: req.ClientState,
		GrantToken:  req.GrantToken,
		Refresh:     req.Refresh,
		UserID:      userID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) token(c *gin.Context) {
	resourceURI := c.Query("resource_uri")
	if resourceURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource_uri is required"})
		return
	}

	tok, err := s.client.Resolve(c.Request.Context(), userID(c), resourceURI)
	if err != nil {
		writeError(c, err)
		return
	}
	if tok == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no access token"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:         tok.AccessToken,
		AccessTokenNotAfter: tok.AccessTokenNotAfter,
	})
}

// writeError maps an engine error to a status code. Only the error kind is
// returned to the caller.
func writeError(c *gin.Context, err error) {
	kind := webauthz.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		logging.Error("Server", err, "%s %s failed", c.Request.Method, c.FullPath())
	}
	c.JSON(status, gin.H{"error": kind.String()})
}

func statusForKind(kind webauthz.Kind) int {
	switch kind {
	case webauthz.KindNotFound:
		return http.StatusNotFound
	case webauthz.KindAccessDenied:
		return http.StatusForbidden
	case webauthz.KindInvalidRequest:
		return http.StatusBadRequest
	case webauthz.KindExchangeFailed, webauthz.KindDiscoveryFailed, webauthz.KindRegistrationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
