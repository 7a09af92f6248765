package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commentboard/internal/cookies"
	"commentboard/internal/logging"
	"commentboard/internal/models"
	"commentboard/internal/services"
)

const HeaderEmailAttempt = "email-attempt"

type AuthHandler struct {
	accounts *services.AccountService
	log      logging.Logger
}

func NewAuthHandler(accounts *services.AccountService, log logging.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, log: log.With("component", "auth_handler")}
}

// @Summary      Sign up
// @Description  Creates an unconfirmed login and mails a confirmation code. Sets Username, AttemptEmail and ConfirmNonce cookies.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        signup  body      models.SignupRequest  true  "Signup data"
// @Success      200     {object}  map[string]string
// @Header       200     {string}  email-attempt  "Address the code was sent to"
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.accounts.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeAccountError(c, h.log, "signup", err)
		return
	}

	setSignupCookies(c, res)
	c.Header(HeaderEmailAttempt, res.Email)
	c.JSON(http.StatusOK, gin.H{"message": "confirmation code sent"})
}

// @Summary      Confirm email
// @Description  Confirms a pending signup with the mailed code and starts a session.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        confirm  body      models.ConfirmEmailRequest  true  "Confirmation code"
// @Success      201      {object}  map[string]string
// @Failure      400      {object}  map[string]string  "Invalid code, cookies kept"
// @Failure      404      {object}  map[string]string  "Signup state lost, cookies cleared"
// @Failure      410      {object}  map[string]string  "Code expired, a new one was sent"
// @Failure      500      {object}  map[string]string
// @Router       /confirm+email [post]
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.ConfirmEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confirmation code"})
		return
	}

	raw, _ := cookies.Decode(c.Request, cookies.Signup...)
	sess, err := h.accounts.ConfirmEmail(ctx, raw, req.ECode)
	if err != nil {
		if ae, ok := asAccountError(err); ok && ae.Kind == services.KindExpiredNonce {
			h.reissueExpired(c, ae.LoginID)
			return
		}
		writeAccountError(c, h.log, "confirm", err)
		return
	}

	cookies.Clear(c.Writer, cookies.ConfirmNonce)
	cookies.Set(c.Writer, cookies.AccessToken, sess.Token, sess.ExpiresAt)
	c.JSON(http.StatusCreated, gin.H{"message": "email confirmed"})
}

// reissueExpired answers an expired confirmation with a fresh code for
// the same login.
func (h *AuthHandler) reissueExpired(c *gin.Context, loginID int64) {
	res, err := h.accounts.ReissueConfirmation(c.Request.Context(), loginID)
	if err != nil {
		writeAccountError(c, h.log, "confirm reissue", err)
		return
	}
	setSignupCookies(c, res)
	c.Header(HeaderEmailAttempt, res.Email)
	c.JSON(http.StatusGone, gin.H{"error": "confirmation code expired, a new code has been sent"})
}

// @Summary      Resend confirmation code
// @Description  Replaces the pending code and nonce and mails the new code.
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /resend+code [post]
func (h *AuthHandler) ResendCode(c *gin.Context) {
	raw, _ := cookies.Decode(c.Request, cookies.Signup...)
	res, err := h.accounts.ResendConfirmation(c.Request.Context(), raw)
	if err != nil {
		writeAccountError(c, h.log, "resend", err)
		return
	}
	setSignupCookies(c, res)
	c.Header(HeaderEmailAttempt, res.Email)
	c.JSON(http.StatusOK, gin.H{"message": "confirmation code sent"})
}

// @Summary      Log in
// @Description  Authenticates a confirmed login and sets the AccessToken cookie.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  map[string]string
// @Failure      401    "Empty body"
// @Failure      500    {object}  map[string]string
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}

	sess, err := h.accounts.Login(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		writeAccountError(c, h.log, "login", err)
		return
	}

	cookies.Set(c.Writer, cookies.AccessToken, sess.Token, sess.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "name": sess.Name})
}

// @Summary      Log out
// @Description  Clears the session and any signup cookies.
// @Tags         Auth
// @Success      200  {object}  map[string]string
// @Router       /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	cookies.Clear(c.Writer, append([]string{cookies.AccessToken}, cookies.Signup...)...)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func setSignupCookies(c *gin.Context, res *services.SignupResult) {
	cookies.Set(c.Writer, cookies.Username, res.Name, res.UsernameExpiresAt)
	cookies.Set(c.Writer, cookies.AttemptEmail, res.Email, res.NonceExpiresAt)
	cookies.Set(c.Writer, cookies.ConfirmNonce, res.PublicNonce, res.NonceExpiresAt)
}
