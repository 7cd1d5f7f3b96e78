package middleware

import (
  "fmt"
  "net/http"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/requestdata"
  "github.com/showforge/preprod-backend/internal/utils"
)

type AuthMiddleware struct {
  log    *logger.Logger
  secret []byte
}

func NewAuthMiddleware(log *logger.Logger) *AuthMiddleware {
  middlewareLogger := log.With("Middleware", "AuthMiddleware")
  secret := utils.GetEnv("JWT_SECRET", "", log)
  return &AuthMiddleware{log: middlewareLogger, secret: []byte(secret)}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractTokenFromAll(c)
    if tokenString == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    rd, err := am.parseToken(tokenString)
    if err != nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
      return
    }
    if rd.ActorID == uuid.Nil {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
      return
    }
    ctx := requestdata.WithRequestData(c.Request.Context(), rd)
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

type accessClaims struct {
  SessionID string `json:"sid,omitempty"`
  jwt.RegisteredClaims
}

func (am *AuthMiddleware) parseToken(tokenString string) (*requestdata.RequestData, error) {
  token, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
    if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
    }
    return am.secret, nil
  })
  if err != nil {
    return nil, fmt.Errorf("invalid token: %w", err)
  }
  claims, ok := token.Claims.(*accessClaims)
  if !ok || !token.Valid {
    return nil, fmt.Errorf("invalid token claims")
  }
  actorID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return nil, fmt.Errorf("invalid subject claim")
  }
  rd := &requestdata.RequestData{TokenString: tokenString, ActorID: actorID}
  if claims.SessionID != "" {
    if sid, sErr := uuid.Parse(claims.SessionID); sErr == nil {
      rd.SessionID = sid
    }
  }
  return rd, nil
}

// SSE connections cannot set headers, so the token may also arrive as a
// query parameter.
func extractTokenFromAll(c *gin.Context) string {
  if qToken := c.Query("token"); qToken != "" {
    return qToken
  }
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  return ""
}
