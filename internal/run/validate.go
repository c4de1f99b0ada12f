package run

import (
	"fmt"
	"path/filepath"
	"strings"

	"runflow/internal/apperrors"
)

// Validation limits
const (
	maxCommandLength = 4096
	maxTimeoutSecs   = 86400 // 24 hours
	maxMounts        = 64
	maxEnvEntries    = 64
	maxEnvKeyLen     = 128
	maxEnvValueLen   = 4096
)

// Validate checks a run request before submission. The field prefix is
// prepended to validation error fields (e.g. "steps[2].run").
func Validate(field string, req *Request) error {
	if req.Command == "" {
		return apperrors.Validation(field+".command", fmt.Sprintf("%s: command is required", field))
	}
	if len(req.Command) > maxCommandLength {
		return apperrors.Validation(field+".command", fmt.Sprintf("%s: command exceeds maximum length of %d", field, maxCommandLength))
	}

	if req.TimeoutSeconds < 0 || req.TimeoutSeconds > maxTimeoutSecs {
		return apperrors.Validation(field+".timeoutSeconds", fmt.Sprintf("%s: timeout must be between 0 and %d seconds", field, maxTimeoutSecs))
	}

	if len(req.Environment) > maxEnvEntries {
		return apperrors.Validation(field+".environment", fmt.Sprintf("%s: environment exceeds maximum of %d entries", field, maxEnvEntries))
	}
	for k, v := range req.Environment {
		if len(k) > maxEnvKeyLen {
			return apperrors.Validation(field+".environment", fmt.Sprintf("%s: environment key exceeds maximum length of %d", field, maxEnvKeyLen))
		}
		if len(v) > maxEnvValueLen {
			return apperrors.Validation(field+".environment", fmt.Sprintf("%s: environment value exceeds maximum length of %d", field, maxEnvValueLen))
		}
	}

	if len(req.Mounts) > maxMounts {
		return apperrors.Validation(field+".mounts", fmt.Sprintf("%s: mounts exceed maximum of %d", field, maxMounts))
	}
	for i, m := range req.Mounts {
		if err := validateMount(fmt.Sprintf("%s.mounts[%d]", field, i), m); err != nil {
			return err
		}
	}

	if req.Output != "" {
		if err := validatePath(req.Output); err != nil {
			return apperrors.Validation(field+".output", fmt.Sprintf("%s: invalid output name: %v", field, err))
		}
	}

	return nil
}

func validateMount(field string, m Mount) error {
	if m.Locator == "" {
		return apperrors.Validation(field+".locator", fmt.Sprintf("%s: locator is required", field))
	}
	if m.Path == "" {
		return apperrors.Validation(field+".path", fmt.Sprintf("%s: path is required", field))
	}
	if err := validatePath(m.Path); err != nil {
		return apperrors.Validation(field+".path", fmt.Sprintf("%s: invalid path: %v", field, err))
	}
	return nil
}

// validatePath rejects absolute paths and traversal so a mount cannot
// escape the run workspace.
func validatePath(path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("path must be relative, not absolute")
	}

	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("path traversal not allowed")
		}
	}

	return nil
}
