package bouncer

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wso2/open-auth-bouncer/internal/constants"
	logger "github.com/wso2/open-auth-bouncer/internal/logging"
)

type unauthorizedBody struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	body, err := json.Marshal(unauthorizedBody{ID: constants.UnauthorizedID, Message: message})
	if err != nil {
		logger.Error("Error encoding unauthorized response: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write(body)
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}

// isLocalPath rejects anything a browser would resolve to another host
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
