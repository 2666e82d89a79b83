package auth

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"
)

const (
	// SessionHeader lets a client present the identity it persisted locally.
	SessionHeader = "X-Session-ID"
	cookieName    = "race_session"
	cookieMaxAge  = 30 * 24 * 60 * 60 // 30 days
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// SessionManager recognizes returning players across reconnects. The
// identity is either supplied by the client or issued here in a signed
// cookie; no server-side session table is kept.
type SessionManager struct {
	codec *securecookie.SecureCookie
}

func NewSessionManager(secret []byte) *SessionManager {
	codec := securecookie.New(secret, nil)
	codec.MaxAge(cookieMaxAge)
	return &SessionManager{codec: codec}
}

// Identify returns the caller's session identity, issuing a new one in a
// cookie when the request carries none.
func (sm *SessionManager) Identify(w http.ResponseWriter, r *http.Request) string {
	if id := r.Header.Get(SessionHeader); ValidSessionID(id) {
		return id
	}

	if id := sm.FromCookie(r); id != "" {
		return id
	}

	id := uuid.NewString()
	if err := sm.SetSessionCookie(w, id); err != nil {
		log.Error().Err(err).Msg("failed to issue session cookie")
	}
	return id
}

// FromCookie decodes the signed session cookie, or returns "".
func (sm *SessionManager) FromCookie(r *http.Request) string {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}

	var id string
	if err := sm.codec.Decode(cookieName, cookie.Value, &id); err != nil {
		log.Debug().Err(err).Msg("rejected session cookie")
		return ""
	}
	if !ValidSessionID(id) {
		return ""
	}
	return id
}

func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, sessionID string) error {
	encoded, err := sm.codec.Encode(cookieName, sessionID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Enable in production with HTTPS
	})
	return nil
}

// ValidSessionID reports whether id is acceptable as a session identity.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}
