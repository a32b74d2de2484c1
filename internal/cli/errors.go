package cli

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ConnectionErrorType categorizes the type of connection error.
type ConnectionErrorType int

const (
	// ConnectionErrorUnknown indicates an unclassified connection error.
	ConnectionErrorUnknown ConnectionErrorType = iota
	// ConnectionErrorTLS indicates a TLS/certificate verification error.
	ConnectionErrorTLS
	// ConnectionErrorNetwork indicates a network connectivity error (e.g., refused, unreachable).
	ConnectionErrorNetwork
	// ConnectionErrorTimeout indicates a connection timeout.
	ConnectionErrorTimeout
	// ConnectionErrorDNS indicates a DNS resolution failure.
	ConnectionErrorDNS
	// ConnectionErrorAuth indicates the backend rejected the credentials.
	ConnectionErrorAuth
)

// String returns a human-readable name for the connection error type.
func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "TLS certificate error"
	case ConnectionErrorNetwork:
		return "Network error"
	case ConnectionErrorTimeout:
		return "Connection timeout"
	case ConnectionErrorDNS:
		return "DNS resolution error"
	case ConnectionErrorAuth:
		return "Authentication error"
	default:
		return "Connection error"
	}
}

// ConnectionError indicates the shared storage backend could not be reached.
type ConnectionError struct {
	// Endpoint is the backend address, credentials removed.
	Endpoint string
	// Type categorizes the connection error.
	Type ConnectionErrorType
	// Reason is the underlying error.
	Reason error
}

// Error returns the failure with a hint for the most likely fix.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s reaching %s: %v\n%s", e.Type, e.Endpoint, e.Reason, e.hint())
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Reason
}

func (e *ConnectionError) hint() string {
	switch e.Type {
	case ConnectionErrorTLS:
		return "Check the server certificate, or use redis:// instead of rediss:// for a local server."
	case ConnectionErrorDNS:
		return "Check the host name in storage.redisUrl."
	case ConnectionErrorAuth:
		return "Check the user name and password in storage.redisUrl."
	case ConnectionErrorNetwork, ConnectionErrorTimeout:
		return "Check that the server is running, or set storage.backend to file."
	default:
		return "Check storage.redisUrl, or set storage.backend to file."
	}
}

// ClassifyConnectionError analyzes an error and returns a ConnectionError with the appropriate type.
// If the error is nil, returns nil.
func ClassifyConnectionError(err error, endpoint string) *ConnectionError {
	if err == nil {
		return nil
	}

	classified := &ConnectionError{Endpoint: endpoint, Reason: err}

	var dnsErr *net.DNSError
	switch {
	case isTLSError(err):
		classified.Type = ConnectionErrorTLS
	case errors.As(err, &dnsErr):
		classified.Type = ConnectionErrorDNS
	case isAuthError(err.Error()):
		classified.Type = ConnectionErrorAuth
	case isTimeoutError(err):
		classified.Type = ConnectionErrorTimeout
	case isNetworkError(err.Error()):
		classified.Type = ConnectionErrorNetwork
	default:
		classified.Type = ConnectionErrorUnknown
	}
	return classified
}

// isTLSError checks if the error is related to TLS/certificate issues.
func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError

	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "x509:") || strings.Contains(errStr, "tls:")
}

// isTimeoutError checks if the error is a timeout.
func isTimeoutError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "i/o timeout") || strings.Contains(errStr, "deadline exceeded")
}

// isAuthError matches Redis authentication replies.
func isAuthError(errStr string) bool {
	return strings.Contains(errStr, "WRONGPASS") || strings.Contains(errStr, "NOAUTH")
}

// isNetworkError checks if the error string indicates a network connectivity issue.
func isNetworkError(errStr string) bool {
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
	}

	for _, keyword := range networkKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
