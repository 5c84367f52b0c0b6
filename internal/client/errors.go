package client

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/leapstack-labs/eqviz/pkg/core"
)

// serverError is the error body shape used by the analytics service.
// Framework-generated errors use "detail" instead of "error".
type serverError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// classifyStatus turns a non-2xx response into a *core.Error, keeping the
// server-supplied reason as the user-facing message when there is one.
func classifyStatus(op string, resp *http.Response) *core.Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var se serverError
	message := ""
	if err := json.Unmarshal(body, &se); err == nil {
		message = se.Error
		if message == "" {
			message = se.Detail
		}
	}

	kind := core.KindServer
	if op == OpLogin && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		kind = core.KindAuth
	}

	return &core.Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Status:  resp.StatusCode,
		Err:     fmt.Errorf("unexpected status %s", resp.Status),
	}
}

// checkBinary rejects report payloads that are empty or are not a document.
func checkBinary(contentType string, data []byte) error {
	if len(data) == 0 {
		return core.NewError(core.KindMalformed, OpFetchReport, "", fmt.Errorf("empty report body"))
	}

	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = mt
		}
	}
	if mediaType == "" {
		mediaType, _, _ = strings.Cut(http.DetectContentType(data), ";")
	}

	switch {
	case mediaType == "application/pdf", mediaType == "application/octet-stream":
		return nil
	case strings.HasPrefix(mediaType, "text/"), strings.HasSuffix(mediaType, "json"):
		return core.NewError(core.KindServer, OpFetchReport, "", fmt.Errorf("expected a binary report, got %s", mediaType))
	default:
		return core.NewError(core.KindMalformed, OpFetchReport, "", fmt.Errorf("unsupported report content type %s", mediaType))
	}
}
