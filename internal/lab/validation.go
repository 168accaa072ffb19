// validation.go - Manifest validation.
//
// Validates the whole manifest up front so commands fail fast with a
// field-by-field error list rather than partway through provisioning.
package lab

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError is one manifest field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("manifest validation failed for %s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every problem found in a manifest.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("manifest validation failed with %d error(s):\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	podRegex   = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*$`)
)

// Validate checks the manifest and returns a ValidationErrors when any
// field is unusable. Defaults are assumed to have been applied already.
func (m *Manifest) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if m.Server.Command == "" {
		add("server.command", "external server command is required")
	}
	if m.Server.ConfigFile == "" {
		add("server.config", "server configuration file path is required")
	}
	if m.Server.Port < 1 || m.Server.Port > 65535 {
		add("server.port", "port %d out of range", m.Server.Port)
	}
	if !strings.HasPrefix(m.Server.ReadyPath, "/") {
		add("server.ready_path", "must start with /")
	}

	if len(m.Accounts) == 0 {
		add("accounts", "at least one account is required")
	}
	seenPods := make(map[string]bool)
	seenEmails := make(map[string]bool)
	for i, a := range m.Accounts {
		field := fmt.Sprintf("accounts[%d]", i)
		if !emailRegex.MatchString(a.Email) {
			add(field+".email", "invalid email address %q", a.Email)
		}
		if len(a.Password) < 8 {
			add(field+".password", "password must be at least 8 characters long")
		}
		if !podRegex.MatchString(a.Pod) {
			add(field+".pod", "pod name %q must be lowercase alphanumeric or dash", a.Pod)
		}
		if seenPods[a.Pod] {
			add(field+".pod", "duplicate pod name %q", a.Pod)
		}
		if seenEmails[a.Email] {
			add(field+".email", "duplicate email %q", a.Email)
		}
		seenPods[a.Pod] = true
		seenEmails[a.Email] = true
	}

	if m.Viewer.Dir == "" {
		add("viewer.dir", "viewer directory is required")
	}
	if m.Viewer.DevPort < 1 || m.Viewer.DevPort > 65535 {
		add("viewer.dev_port", "port %d out of range", m.Viewer.DevPort)
	}
	if m.Viewer.DevPort == m.Server.Port {
		add("viewer.dev_port", "viewer and server cannot share port %d", m.Server.Port)
	}

	// Object store settings are all-or-nothing: a partially configured
	// backend is almost always a typo.
	os := m.ObjectStore
	set := 0
	for _, v := range []string{os.Endpoint, os.AccessKey, os.SecretKey, os.Bucket} {
		if v != "" {
			set++
		}
	}
	if set > 0 && set < 4 {
		add("object_store", "endpoint, access_key, secret_key and bucket must all be set together")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
