package rtmclient

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"

	"github.com/satori-rtm/rtmclient/internal/rtmerr"
)

var versionSuffix = regexp.MustCompile(`/v\d+/?$`)

// buildEndpoint appends the mandatory /v2 path and ?appkey= query parameter
// to the configured endpoint (spec.md section 6). If the caller pre-specified
// a trailing /vN path, it is stripped with a logged warning, matching
// original_source's re_version handling (satori-rtm-sdk-python's
// connection.py). An endpoint containing /v2 never gets here:
// Config.Validate rejects it at construction.
func buildEndpoint(raw, appKey string, logger *slog.Logger) (string, error) {
	if raw == "" {
		return "", rtmerr.ErrMalformedEndpoint
	}
	if appKey == "" {
		return "", rtmerr.ErrMissingAppKey
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return "", fmt.Errorf("%w: %s", rtmerr.ErrMalformedEndpoint, raw)
	}

	if versionSuffix.MatchString(u.Path) {
		logger.Warn("endpoint pre-specifies a version path; stripping", slog.String("endpoint", raw))
		u.Path = versionSuffix.ReplaceAllString(u.Path, "")
	}

	u.Path = u.Path + "/v2"
	q := u.Query()
	q.Set("appkey", appKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
