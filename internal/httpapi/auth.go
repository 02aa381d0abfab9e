package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	operatorSessionName       = "leadloop_operator"
	operatorSessionKeyGranted = "operator"
	operatorSessionMaxAge     = 12 * 60 * 60
	bearerPrefix              = "Bearer "

	contextKeyOperator = "httpapi_operator"

	authErrorUnauthorized     = "unauthorized"
	authErrorForbidden        = "forbidden"
	authErrorOperatorDisabled = "operator_access_disabled"
	logEventLoadSession       = "load_session"
	logEventSaveSession       = "save_session"
	logEventOperatorLogin     = "operator_login"
	logEventOperatorDenied    = "operator_login_denied"
)

// OperatorAuth guards the dashboard endpoints with a shared access code.
// A successful login stores a signed cookie session; API clients may send the
// code as a bearer token instead.
type OperatorAuth struct {
	logger       *zap.Logger
	sessionStore *sessions.CookieStore
	accessCode   string
}

// NewOperatorAuth builds the cookie store from sessionSecret. An empty access
// code disables every operator endpoint.
func NewOperatorAuth(logger *zap.Logger, accessCode string, sessionSecret string) *OperatorAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   operatorSessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &OperatorAuth{
		logger:       logger,
		sessionStore: store,
		accessCode:   strings.TrimSpace(accessCode),
	}
}

type loginRequest struct {
	AccessCode string `json:"access_code"`
}

func (auth *OperatorAuth) Login(context *gin.Context) {
	if auth.accessCode == "" {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: authErrorOperatorDisabled})
		return
	}
	var request loginRequest
	if bindErr := context.ShouldBindJSON(&request); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if !auth.matches(request.AccessCode) {
		auth.logger.Warn(logEventOperatorDenied, zap.String("ip", context.ClientIP()))
		context.JSON(http.StatusForbidden, gin.H{jsonKeyError: authErrorForbidden})
		return
	}
	session, sessionErr := auth.sessionStore.Get(context.Request, operatorSessionName)
	if sessionErr != nil {
		auth.logger.Debug(logEventLoadSession, zap.Error(sessionErr))
	}
	session.Values[operatorSessionKeyGranted] = true
	if saveErr := session.Save(context.Request, context.Writer); saveErr != nil {
		auth.logger.Error(logEventSaveSession, zap.Error(saveErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	auth.logger.Info(logEventOperatorLogin, zap.String("ip", context.ClientIP()))
	context.JSON(http.StatusOK, gin.H{"authenticated": true})
}

func (auth *OperatorAuth) Logout(context *gin.Context) {
	session, sessionErr := auth.sessionStore.Get(context.Request, operatorSessionName)
	if sessionErr != nil {
		auth.logger.Debug(logEventLoadSession, zap.Error(sessionErr))
	}
	delete(session.Values, operatorSessionKeyGranted)
	session.Options.MaxAge = -1
	if saveErr := session.Save(context.Request, context.Writer); saveErr != nil {
		auth.logger.Error(logEventSaveSession, zap.Error(saveErr))
	}
	context.JSON(http.StatusOK, gin.H{"authenticated": false})
}

func (auth *OperatorAuth) RequireOperatorJSON() gin.HandlerFunc {
	return func(context *gin.Context) {
		if auth.accessCode == "" {
			context.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: authErrorOperatorDisabled})
			return
		}
		if !auth.authenticated(context) {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
			return
		}
		context.Set(contextKeyOperator, true)
		context.Next()
	}
}

func (auth *OperatorAuth) authenticated(context *gin.Context) bool {
	authorizationHeader := strings.TrimSpace(context.GetHeader("Authorization"))
	if strings.HasPrefix(authorizationHeader, bearerPrefix) {
		return auth.matches(strings.TrimPrefix(authorizationHeader, bearerPrefix))
	}
	session, sessionErr := auth.sessionStore.Get(context.Request, operatorSessionName)
	if sessionErr != nil {
		auth.logger.Debug(logEventLoadSession, zap.Error(sessionErr))
		return false
	}
	granted, _ := session.Values[operatorSessionKeyGranted].(bool)
	return granted
}

func (auth *OperatorAuth) matches(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || auth.accessCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(auth.accessCode)) == 1
}
