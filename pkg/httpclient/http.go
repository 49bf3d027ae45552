package httpclient

import (
	"context"
	"net/http"
)

type BaseResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// HTTPClient is the outbound client shared by the collaborator repositories.
// result, when non-nil, receives the JSON-decoded body of a 2xx response;
// raw text artifacts are read from BaseResponse.Body instead.
type HTTPClient interface {
	Get(ctx context.Context, endpoint string, queryParams map[string]string, result interface{}) (*BaseResponse, error)
	Post(ctx context.Context, endpoint string, body interface{}, result interface{}) (*BaseResponse, error)
}
