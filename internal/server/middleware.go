package server

import (
	"compress/gzip"
	"net/http"
	"strings"

	"taskmanager/internal/domain/errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const authCookieName = "jwt_token"

// AuthRequired проверяет JWT из cookie jwt_token и кладёт user_id в контекст.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := ctx.Cookie(authCookieName)
		if err != nil || tokenString == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
			return
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.ErrUnauthorized
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
			return
		}
		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
			return
		}

		ctx.Set("user_id", userID)
		ctx.Next()
	}
}

type gzipWriter struct {
	gin.ResponseWriter
	gw *gzip.Writer
}

func (w *gzipWriter) Write(data []byte) (int, error) { return w.gw.Write(data) }

func (w *gzipWriter) WriteString(s string) (int, error) { return w.gw.Write([]byte(s)) }

// GzipResponseCompress сжимает тело ответа, если клиент прислал
// Accept-Encoding: gzip.
func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead {
			ctx.Next()
			return
		}

		acceptEnc := strings.ToLower(ctx.GetHeader("Accept-Encoding"))
		if !strings.Contains(acceptEnc, "gzip") {
			ctx.Next()
			return
		}

		ctx.Writer.Header().Set("Content-Encoding", "gzip")
		ctx.Writer.Header().Set("Vary", "Accept-Encoding")
		ctx.Writer.Header().Del("Content-Length")

		gw := gzip.NewWriter(ctx.Writer)
		wrapped := &gzipWriter{ResponseWriter: ctx.Writer, gw: gw}
		ctx.Writer = wrapped

		ctx.Next()

		_ = gw.Close()
	}
}
