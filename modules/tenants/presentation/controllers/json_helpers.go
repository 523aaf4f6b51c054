package controllers

import (
	"net/http"

	"github.com/omnierp/controlplane/pkg/httpapi"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string, meta ...map[string]string) {
	var m map[string]string
	if len(meta) > 0 {
		m = meta[0]
	}
	if err := httpapi.WriteError(w, status, code, message, m); err != nil {
		panic(err)
	}
}
