package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/turnlabs/authgate/internal/application"
	"github.com/turnlabs/authgate/internal/identity"
	"github.com/turnlabs/authgate/pkg/response"
	"github.com/turnlabs/authgate/pkg/validation"
)

type AuthHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewAuthHandler(svc *application.Service, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger}
}

type registerRequest struct {
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"companyName" binding:"required"`
	LastName    string `json:"lastName"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phoneNumber" binding:"required,phone"`
	Password    string `json:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register POST /api/auth/register/admin
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Name:        strings.TrimSpace(req.Name),
		CompanyName: strings.TrimSpace(req.CompanyName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.TrimSpace(req.Email),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Password:    req.Password,
	})
	if err != nil {
		if errors.Is(err, application.ErrLocalPersistence) {
			response.Error[any](c, http.StatusInternalServerError, "local profile creation failed", nil)
			return
		}
		// provider-side failure; details stay in the logs
		response.Error[any](c, http.StatusInternalServerError, "registration failed", nil)
		return
	}

	p := res.Profile
	response.Success(c, http.StatusCreated, gin.H{
		"_id":         p.ID,
		"email":       p.Email,
		"name":        p.Name,
		"companyName": p.CompanyName,
		"lastName":    p.LastName,
		"phoneNumber": p.PhoneNumber,
		"authProfile": authProfile(res.AuthProfile),
	}, "User registered", nil)
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.Login(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		var reqErr *identity.RequestError
		switch {
		case errors.Is(err, application.ErrProfileNotFound):
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
		case errors.Is(err, identity.ErrInvalidCredentials):
			response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		case errors.As(err, &reqErr):
			response.Error[any](c, http.StatusBadRequest, reqErr.Error(), nil)
		default:
			response.Error[any](c, http.StatusInternalServerError, "login failed", nil)
		}
		return
	}

	p := res.Profile
	data := gin.H{
		"profile": gin.H{
			"_id":         p.ID,
			"email":       p.Email,
			"name":        p.Name,
			"companyName": p.CompanyName,
			"lastName":    p.LastName,
			"phoneNumber": p.PhoneNumber,
		},
		"tokens": res.Tokens,
	}
	if res.UserInfo != nil {
		data["userinfo"] = res.UserInfo
	}
	response.Success(c, http.StatusOK, data, "login successful", nil)
}

// SearchProfiles GET /api/auth/profiles/search?q=&size=
func (h *AuthHandler) SearchProfiles(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchProfiles(c.Request.Context(), q, size)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}

// authProfile exposes the remote identity's public attributes as returned
// by the provider, falling back to just the id.
func authProfile(u *identity.User) any {
	if u == nil {
		return nil
	}
	if u.Extra != nil {
		return u.Extra
	}
	return gin.H{"user_id": u.UserID}
}
