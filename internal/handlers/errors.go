package handlers

import (
	"net/http"

	"leetee/internal/logger"
)

func respondWithError(log *logger.Logger, w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger.OrNop(log).Error(logMsg, "status", status, "error", err)
	}

	http.Error(w, userMsg, status)
}
