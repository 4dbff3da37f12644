package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/fan2pwm/internal/ui"
)

func (h *handlers) registerBackupEndpoints(rest *echo.Echo) {
	rest.GET("/db/backup/", h.getBackup)
}

// getBackup streams a consistent snapshot of the database
func (h *handlers) getBackup(c echo.Context) error {
	filename := fmt.Sprintf("fan2pwm-%s.db", time.Now().Format("20060102-150405"))
	response := c.Response()
	response.Header().Set(echo.HeaderContentType, echo.MIMEOctetStream)
	response.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	response.WriteHeader(http.StatusOK)

	size, err := h.Store.Backup(response)
	if err != nil {
		// the status line is already sent, the client sees a truncated body
		ui.Error("Database backup failed after %d bytes: %v", size, err)
		return nil
	}
	ui.Debug("Streamed database backup of %d bytes", size)
	return nil
}
