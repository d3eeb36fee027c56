package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger es cualquier dependencia que puede reportar si esta viva.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapta una funcion a Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler maneja GET /healthz.
func HealthHandler(checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		report := gin.H{}
		for name, p := range checks {
			if p == nil {
				continue
			}
			if err := p.Ping(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": report})
	}
}
