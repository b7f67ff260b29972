package folio

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// emailPattern accepts anything shaped like a@b.c.
var emailPattern = regexp.MustCompile(`.+@.+\..+`)

const minMessageLength = 10

// ContactMessage is the body of POST /api/contact.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Valid reports whether every field is present, the email looks like an
// address and the trimmed message has at least ten characters.
func (m ContactMessage) Valid() bool {
	return strings.TrimSpace(m.Name) != "" &&
		emailPattern.MatchString(m.Email) &&
		len([]rune(strings.TrimSpace(m.Message))) >= minMessageLength
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handleContact accepts a contact message. No mail is sent; the message is
// logged for the site owner.
func (a *App) handleContact(c echo.Context) error {
	if !a.contactLimiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, errorBody{Error: "Too many messages. Try again later."})
	}
	var msg ContactMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&msg); err != nil || !msg.Valid() {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid payload"})
	}
	a.Log.Info("contact message",
		zap.String("name", msg.Name),
		zap.String("email", msg.Email),
		zap.String("message", msg.Message),
	)
	return c.JSON(http.StatusOK, okResponse{OK: true})
}
