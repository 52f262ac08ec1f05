package breaker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Class separates errors that indicate dependency unhealthiness from errors
// that indicate a caller bug.
type Class int

const (
	// ClassServer counts toward breaker state: 5xx, timeouts, refused
	// connections, cancelled/starved queries.
	ClassServer Class = iota
	// ClassClient does not count: the dependency answered and rejected the
	// request (4xx and friends).
	ClassClient
)

// HTTPStatusError marks a non-2xx response from an HTTP dependency so the
// classifier can tell server failures from malformed requests.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// Classify maps an error to a breaker class. Unknown errors default to
// ClassServer: an unexplained failure is treated as dependency trouble.
func Classify(err error) Class {
	if err == nil {
		return ClassClient
	}

	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return ClassClient
		}
		return ClassServer
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		switch st.Code() {
		case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
			codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition,
			codes.OutOfRange:
			return ClassClient
		default:
			return ClassServer
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08xxx connection exceptions, 53xxx insufficient resources,
		// 57014 statement timeout / query canceled.
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "53") ||
			pgErr.Code == "57014" {
			return ClassServer
		}
		return ClassClient
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassServer
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassServer
	}

	return ClassServer
}
