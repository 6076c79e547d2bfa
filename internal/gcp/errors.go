package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNoAccessToken = errors.New("No access token available. Please authenticate first.")
	ErrNoProject     = errors.New("No project selected.")
)

// Service names, also used as breaker and metric labels.
const (
	ServiceBigQuery        = "bigquery"
	ServiceMonitoring      = "monitoring"
	ServiceResourceManager = "resourcemanager"
	ServiceOAuth2          = "oauth2"
)

// APIError is a GCP failure translated into a user-facing message.
type APIError struct {
	Service   string
	Operation string
	// Status is the HTTP status of the upstream failure, 0 when the call never reached the API.
	Status      int
	Message     string
	ForceReauth bool
	Err         error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ReauthRequired reports whether err means the caller's credentials must be discarded.
func ReauthRequired(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.ForceReauth
}

// upstreamStatus extracts an HTTP status and message from REST or gRPC errors.
func upstreamStatus(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" && len(gerr.Errors) > 0 {
			msg = gerr.Errors[0].Message
		}
		return gerr.Code, msg
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return grpcToHTTP(s.Code()), s.Message()
	}
	return 0, ""
}

func grpcToHTTP(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// isTransient reports failures worth retrying: throttling, server errors and open breakers are not
// client mistakes.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	code, _ := upstreamStatus(err)
	switch {
	case code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

func breakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// baseError fills the common fields; callers pick the message.
func baseError(service, op string, err error) (*APIError, string) {
	code, msg := upstreamStatus(err)
	apiErr := &APIError{Service: service, Operation: op, Status: code, Err: err}
	if breakerOpen(err) {
		apiErr.Status = http.StatusServiceUnavailable
		msg = fmt.Sprintf("%s API is temporarily unavailable after repeated failures. Please try again shortly.", serviceTitle(service))
	}
	return apiErr, msg
}

func serviceTitle(service string) string {
	switch service {
	case ServiceBigQuery:
		return "BigQuery"
	case ServiceMonitoring:
		return "GCP Monitoring"
	case ServiceResourceManager:
		return "GCP Resource Manager"
	case ServiceOAuth2:
		return "Google OAuth2"
	default:
		return service
	}
}

func bigQueryError(op string, err error) error {
	if err == nil {
		return nil
	}
	apiErr, msg := baseError(ServiceBigQuery, op, err)
	if msg == "" {
		msg = err.Error()
	}
	if msg == "" {
		msg = "Unknown error"
	}
	apiErr.Message = "BigQuery Error: " + msg
	apiErr.ForceReauth = apiErr.Status == http.StatusUnauthorized
	return apiErr
}

func monitoringError(projectID string, err error) error {
	if err == nil {
		return nil
	}
	apiErr, msg := baseError(ServiceMonitoring, "timeSeries.list", err)
	switch apiErr.Status {
	case http.StatusUnauthorized:
		apiErr.Message = "Authentication failed. Your session may have expired."
		apiErr.ForceReauth = true
	case http.StatusForbidden:
		apiErr.Message = fmt.Sprintf("Permission denied for project %s. Ensure your account has the 'monitoring.read' scope and necessary IAM permissions.", projectID)
		apiErr.ForceReauth = true
	default:
		if msg == "" {
			msg = "Failed to fetch data from GCP Monitoring API"
		}
		apiErr.Message = msg
	}
	return apiErr
}

func projectsListError(err error) error {
	if err == nil {
		return nil
	}
	apiErr, msg := baseError(ServiceResourceManager, "projects.list", err)
	switch apiErr.Status {
	case http.StatusUnauthorized:
		apiErr.Message = "Authentication failed. Please re-authenticate with updated scopes."
		apiErr.ForceReauth = true
	case http.StatusForbidden:
		detail := msg
		if detail == "" {
			detail = "Permission denied"
		}
		apiErr.Message = "Access denied. Please check your permissions and ensure the Cloud Resource Manager API is enabled. Error: " + detail
	case http.StatusNotFound:
		apiErr.Message = "Resource Manager API endpoint not found. Please verify the API is enabled."
	default:
		if msg == "" {
			msg = "Failed to fetch projects from GCP Resource Manager API"
		}
		apiErr.Message = msg
	}
	return apiErr
}

func projectGetError(projectID string, err error) error {
	if err == nil {
		return nil
	}
	apiErr, msg := baseError(ServiceResourceManager, "projects.get", err)
	switch apiErr.Status {
	case http.StatusUnauthorized:
		apiErr.Message = "Authentication failed. Please re-authenticate."
		apiErr.ForceReauth = true
	case http.StatusForbidden:
		apiErr.Message = fmt.Sprintf("Access denied for project %s. Check your permissions.", projectID)
	case http.StatusNotFound:
		apiErr.Message = fmt.Sprintf("Project %s not found or you don't have access to it.", projectID)
	default:
		if msg == "" {
			msg = "Failed to fetch project " + projectID
		}
		apiErr.Message = msg
	}
	return apiErr
}

func userInfoError(err error) error {
	if err == nil {
		return nil
	}
	apiErr, _ := baseError(ServiceOAuth2, "userinfo.get", err)
	apiErr.Message = "Failed to retrieve user information"
	apiErr.ForceReauth = apiErr.Status == http.StatusUnauthorized
	return apiErr
}
