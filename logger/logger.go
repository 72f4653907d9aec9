package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const ProductionEnv = "production"

type formatter struct {
	format log.Formatter
	fields log.Fields
}

func (f formatter) Format(entry *log.Entry) ([]byte, error) {
	for k, v := range f.fields {
		if _, exists := entry.Data[k]; !exists {
			entry.Data[k] = v
		}
	}
	return f.format.Format(entry)
}

// Init configures the global logrus logger: JSON with caller info in
// production, human readable text otherwise.
func Init(env string, fields log.Fields) {
	var (
		format log.Formatter
		caller bool
	)

	switch env {
	case ProductionEnv:
		format = new(log.JSONFormatter)
		caller = true
	default:
		format = &log.TextFormatter{FullTimestamp: true}
	}

	if fields == nil {
		fields = log.Fields{}
	}

	log.SetFormatter(formatter{format: format, fields: fields})
	log.SetLevel(log.InfoLevel)
	log.SetReportCaller(caller)
}

// GinLogger logs one line per request.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Info("request handled")
	}
}
