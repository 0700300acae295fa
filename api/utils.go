package api

import (
	"encoding/json"
	"net/http"

	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

func sendError(message string, statusCode int, err error, res http.ResponseWriter) {
	if err != nil {
		log.ErrorCause(err, message)
		if message == "" {
			message = err.Error()
		} else {
			message = wrap.Error(err, message).Error()
		}
	} else {
		log.Warn(message)
	}

	http.Error(res, message, statusCode)
}

func sendJSON(value any, res http.ResponseWriter) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(res).Encode(value); err != nil {
		log.ErrorCause(err, "failed to serialize response")
	}
}
