package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"golang.org/x/term"
)

// MaskValue replaces a redacted value.
const MaskValue = "***REDACTED***"

// credentialHeaders are request header names whose values never reach the
// log. Headers given with --header are logged under their own names.
var credentialHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-csrf-token":        true,
}

// secretWords mark an attribute key or a query parameter name as secret
// when they appear anywhere in it. The bare word "key" is not listed since
// it matches names like "cache_key".
var secretWords = []string{
	"password", "passwd", "secret", "token", "auth",
	"credential", "private", "cookie", "session", "signature",
}

// secretParams are query parameter names that carry secrets on signed or
// authenticated download links.
var secretParams = map[string]bool{
	"apikey":  true,
	"api_key": true,
	"key":     true,
	"sig":     true,
	"code":    true,
	"sid":     true,
}

// secretValue matches header-like values that are credentials on their own.
var secretValue = regexp.MustCompile(`(?i)` +
	`^(bearer\s+\S+|basic\s+[a-z0-9+/=]+|eyJ[\w-]*\.eyJ[\w-]*\.[\w-]*|AKIA[0-9A-Z]{16})$` +
	`|-----BEGIN.*(PRIVATE|SECRET).*KEY-----`)

// urlInText finds absolute URLs inside log messages.
var urlInText = regexp.MustCompile(`https?://[^\s"'<>]+`)

// SecureHandler wraps an slog.Handler and redacts credentials before records
// reach it. Credential headers and secret-named attributes are masked
// outright. URLs keep their host and path but lose embedded passwords and
// secret query values, both in attributes and in the message text.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler falls back to the default
// logger's handler.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle redacts the message and attributes of r and forwards the result.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, redactText(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

// WithAttrs redacts attrs once, when they are attached.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(clean)}
}

// WithGroup delegates to the wrapped handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		members := a.Value.Group()
		clean := make([]slog.Attr, len(members))
		for i, m := range members {
			clean[i] = redactAttr(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}

	if isSecretKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}
	// net/http errors quote the request URL.
	if err, ok := a.Value.Any().(error); ok {
		msg := err.Error()
		if redacted := redactText(msg); redacted != msg {
			return slog.String(a.Key, redacted)
		}
		return a
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}

	s := a.Value.String()
	if secretValue.MatchString(s) {
		return slog.String(a.Key, MaskValue)
	}
	if redacted := redactText(s); redacted != s {
		return slog.String(a.Key, redacted)
	}
	return a
}

// isSecretKey reports whether an attribute key names a credential.
func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	if credentialHeaders[key] {
		return true
	}
	for _, w := range secretWords {
		if strings.Contains(key, w) {
			return true
		}
	}
	return false
}

// isSecretParam reports whether a query parameter carries a secret.
func isSecretParam(name string) bool {
	name = strings.ToLower(name)
	return secretParams[name] || isSecretKey(name)
}

// redactText rewrites every absolute URL in s with redactURL.
func redactText(s string) string {
	if !strings.Contains(s, "://") {
		return s
	}
	return urlInText.ReplaceAllStringFunc(s, redactURL)
}

// redactURL masks the userinfo password and the values of secret query
// parameters. Parameter order and the rest of the URL are preserved. Input
// that does not parse is returned as is.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	changed := false
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
		changed = true
	}

	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		for i, p := range pairs {
			rawName, _, found := strings.Cut(p, "=")
			if !found {
				continue
			}
			name := rawName
			if decoded, err := url.QueryUnescape(rawName); err == nil {
				name = decoded
			}
			if isSecretParam(name) {
				pairs[i] = rawName + "=REDACTED"
				changed = true
			}
		}
		u.RawQuery = strings.Join(pairs, "&")
	}

	if !changed {
		return raw
	}
	return u.String()
}

// NewLogger builds the application logger: a ConsoleHandler at the given
// minimum level behind a SecureHandler. tty enables the in-place progress
// line for records below the minimum.
func NewLogger(w io.Writer, level slog.Level, tty bool) *slog.Logger {
	return slog.New(NewSecureHandler(NewConsoleHandler(w, level, tty)))
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
