package server

import (
	"net/http"
	"strings"

	"github.com/joss/navigator/internal/media"
)

// authorizationParams parses the Jellyfin/Emby scheme:
//
//	MediaBrowser Client="web", Token="abc", UserId="u1"
func authorizationParams(header string) map[string]string {
	header = strings.TrimSpace(header)
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok {
		return nil
	}
	switch strings.ToLower(scheme) {
	case "mediabrowser", "emby":
	default:
		return nil
	}

	params := map[string]string{}
	for _, pair := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return params
}

// sessionAuth extracts the forwarded Jellyfin session. Explicit headers win
// over values embedded in Authorization.
func sessionAuth(r *http.Request) media.Auth {
	params := authorizationParams(r.Header.Get("Authorization"))

	token := r.Header.Get("X-Emby-Token")
	if token == "" {
		token = r.Header.Get("X-MediaBrowser-Token")
	}
	if token == "" {
		token = params["token"]
	}

	userID := r.Header.Get("X-Jellyfin-User-Id")
	if userID == "" {
		userID = params["userid"]
	}

	return media.Auth{Token: strings.TrimSpace(token), UserID: strings.TrimSpace(userID)}
}
