package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

func (s *Server) adminLogin(c *gin.Context) {
	username := adminName(s.cfg)

	if !s.cfg.DisableAdminAuth {
		var req loginRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			respondBadRequest(c, err)
			return
		}
		name, password := req.credentials()
		if name == "" || password == "" {
			fail(c, http.StatusBadRequest, CodeBadRequest)
			return
		}
		if !s.checkAdminCredentials(name, password) {
			log.WithFields(log.Fields{
				"username": name,
				"clientIP": c.ClientIP(),
			}).Warn("Admin login failed")
			fail(c, http.StatusUnauthorized, CodeUnauthorized)
			return
		}
		username = name
	}

	token, expiresAt, err := IssueAdminToken(s.cfg, username, s.now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AdminCookie, token, int(s.cfg.AdminTokenTTL.Seconds()), "/", "", s.cfg.CookieSecure, true)

	log.WithField("username", username).Info("Admin logged in")
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"admin":     true,
		"username":  username,
		"token":     token,
		"expiresAt": expiresAt.UTC(),
	})
}

func (s *Server) checkAdminCredentials(username, password string) bool {
	if s.cfg.AdminPasswordHash == "" || username != adminName(s.cfg) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)) == nil
}

func (s *Server) adminLogout(c *gin.Context) {
	c.SetCookie(AdminCookie, "", -1, "/", "", s.cfg.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) adminMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "admin": true, "username": adminUser(c)})
}
