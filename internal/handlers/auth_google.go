package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/middleware"
	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/utils"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleOAuthHandler signs users (not workers) in with Google.
type GoogleOAuthHandler struct {
	DB              *gorm.DB
	JWTSecret       string
	Expires         int
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
	Log             *zap.Logger
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) enabled() bool {
	return h.GoogleClientID != "" && h.GoogleSecret != ""
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	if !h.enabled() {
		return utils.NotFound("Google sign-in is not configured")
	}
	next := c.Query("next", "/")
	st := randomState(32)

	for name, val := range map[string]string{"oauth_state": st, "oauth_next": next} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    val,
			Path:     "/",
			HTTPOnly: true,
			SameSite: "Lax",
			MaxAge:   10 * 60,
		})
	}

	return c.Redirect(h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline), http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return utils.BadRequest("Missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	if stCookie == "" || stCookie != state {
		return utils.BadRequest("Invalid state")
	}
	next := c.Cookies("oauth_next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}

	tok, err := h.oauthCfg().Exchange(c.Context(), code)
	if err != nil {
		return utils.BadRequest("Failed to exchange code")
	}

	resp, err := h.oauthCfg().Client(c.Context(), tok).Get(googleUserInfoURL)
	if err != nil {
		return utils.BadRequest("Failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return utils.BadRequest("Failed to decode userinfo")
	}

	u, err := h.upsertUser(gu)
	if err != nil {
		return err
	}

	jwtToken, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(models.RoleUser), h.Expires)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    jwtToken,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
	c.Cookie(&fiber.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1, HTTPOnly: true, SameSite: "Lax"})
	c.Cookie(&fiber.Cookie{Name: "oauth_next", Value: "", Path: "/", MaxAge: -1, HTTPOnly: true, SameSite: "Lax"})

	// bearer clients pick the token up from the fragment
	redirectURL := strings.TrimRight(h.FrontendBaseURL, "/") + next + "#token=" + url.QueryEscape(jwtToken)
	return c.Redirect(redirectURL, http.StatusTemporaryRedirect)
}

func (h *GoogleOAuthHandler) upsertUser(gu googleUserInfo) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(gu.Email))
	name := strings.TrimSpace(gu.Name)
	if email == "" {
		return nil, utils.BadRequest("Email not found from Google")
	}

	var u models.User
	err := h.DB.Where("email = ?", email).First(&u).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		// random password, never used for a manual login
		hashed, err := utils.HashPassword(randomState(24))
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = strings.Split(email, "@")[0]
		}
		u = models.User{
			Name:         name,
			Email:        email,
			Password:     hashed,
			ProfileImage: gu.Picture,
		}
		if err := h.DB.Create(&u).Error; err != nil {
			h.Log.Error("create user via google failed", zap.Error(err))
			return nil, err
		}
		return &u, nil
	}

	if name != "" && u.Name != name {
		u.Name = name
		_ = h.DB.Model(&u).Update("name", name).Error
	}
	return &u, nil
}
