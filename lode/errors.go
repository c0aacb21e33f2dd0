package lode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Storage failure classes. A *StorageError matches its class with
// errors.Is.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	// ErrAuth is missing or invalid credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied is valid credentials without permission.
	ErrAccessDenied = errors.New("access denied")
	ErrNetwork      = errors.New("network error")
	// ErrStorage is any failure that matches no other class.
	ErrStorage = errors.New("storage error")
)

// StorageError is a classified storage failure. The underlying error stays
// in the chain.
type StorageError struct {
	// Kind is one of the class sentinels above.
	Kind error
	// Op is "write", "read" or "init".
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the failure class.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewStorageError creates a classified storage error.
func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Path: path, Err: err}
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewStorageError(classifyError(err), op, path, err)
}

// WrapWriteError classifies a write failure. Nil stays nil.
func WrapWriteError(err error, path string) error { return wrap("write", path, err) }

// WrapReadError classifies a read failure. Nil stays nil.
func WrapReadError(err error, path string) error { return wrap("read", path, err) }

// WrapInitError classifies a client setup failure. Nil stays nil.
func WrapInitError(err error, dataset string) error { return wrap("init", dataset, err) }

// IsTransient reports whether a storage failure may succeed on retry:
// timeouts, throttling and network errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if !errors.As(err, new(*StorageError)) {
		err = NewStorageError(classifyError(err), "", "", err)
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrThrottled) || errors.Is(err, ErrNetwork)
}

// classRule maps message fragments to a class. Rules are tried in order;
// AccessDenied must win over the generic "access denied" permission text.
type classRule struct {
	kind      error
	fragments []string
}

var classRules = []classRule{
	{ErrAccessDenied, []string{"AccessDenied", "Forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "EACCES", "access denied"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "ENOENT", "404", "NoSuchKey", "NoSuchBucket"}},
	{ErrDiskFull, []string{"no space left", "disk full", "ENOSPC", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests"}},
	{ErrAuth, []string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized"}},
	{ErrNetwork, []string{"connection refused", "connection reset", "no route to host",
		"network unreachable", "DNS", "dial tcp", "broken pipe"}},
}

// classifyError picks the class for err. Typed errors are checked before
// message fragments.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var timeout interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &timeout) && timeout.Timeout():
		return ErrTimeout
	case errors.Is(err, syscall.ENOSPC):
		return ErrDiskFull
	case errors.Is(err, os.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return ErrNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classRules {
		for _, frag := range rule.fragments {
			if strings.Contains(msg, strings.ToLower(frag)) {
				return rule.kind
			}
		}
	}
	return ErrStorage
}
