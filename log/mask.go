// SPDX-License-Identifier: ice License 1.0

package log

import (
	"net/url"
	"strings"
)

// MaskURL hides the password of a connection string so that it can be logged.
// Keyword/value DSNs (`host=... password=...`) are masked too.
// URL-shaped strings are masked even when they do not parse: everything between `://` and the last `@` is userinfo.
func MaskURL(connString string) string {
	if connString == "" {
		return ""
	}
	scheme, rest, isURL := strings.Cut(connString, "://")
	if !isURL || scheme == "" || strings.ContainsAny(scheme, " =") {
		return maskKeywordDSN(connString)
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		if user, _, hasPassword := strings.Cut(rest[:at], ":"); hasPassword {
			rest = user + ":" + maskedSecret + "@" + rest[at+1:]
		}
	}
	masked := scheme + "://" + rest
	parsed, err := url.Parse(masked)
	if err != nil {
		return maskRawQuery(masked)
	}
	query := parsed.Query()
	if query.Has("password") {
		query.Set("password", maskedSecret)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

func maskKeywordDSN(dsn string) string {
	fields := strings.Fields(dsn)
	for ix, field := range fields {
		if key, _, found := strings.Cut(field, "="); found && strings.EqualFold(key, "password") {
			fields[ix] = key + "=" + maskedSecret
		}
	}

	return strings.Join(fields, " ")
}

func maskRawQuery(connString string) string {
	base, rawQuery, hasQuery := strings.Cut(connString, "?")
	if !hasQuery {
		return connString
	}
	params := strings.Split(rawQuery, "&")
	for ix, param := range params {
		if key, _, found := strings.Cut(param, "="); found && strings.EqualFold(key, "password") {
			params[ix] = key + "=" + maskedSecret
		}
	}

	return base + "?" + strings.Join(params, "&")
}
