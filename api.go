package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	c := make(chan ApiCallbackResult[R], 1)
	apiCallback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return apiCallback, c
}

// known remote error categories. an unrecognized code maps to
// ErrorCodeUnknown.
type ErrorCode string

const (
	ErrorCodeNotAuthed           ErrorCode = "not_authed"
	ErrorCodeInvalidAuth         ErrorCode = "invalid_auth"
	ErrorCodeAccountInactive     ErrorCode = "account_inactive"
	ErrorCodeTokenRevoked        ErrorCode = "token_revoked"
	ErrorCodeChannelNotFound     ErrorCode = "channel_not_found"
	ErrorCodeNotInChannel        ErrorCode = "not_in_channel"
	ErrorCodeUserNotFound        ErrorCode = "user_not_found"
	ErrorCodeMessageNotFound     ErrorCode = "message_not_found"
	ErrorCodeRateLimited         ErrorCode = "rate_limited"
	ErrorCodeMigrationInProgress ErrorCode = "migration_in_progress"
	ErrorCodeRequestTimeout      ErrorCode = "request_timeout"
	ErrorCodeUnknown             ErrorCode = "unknown"
)

var knownErrorCodes = map[string]ErrorCode{
	"not_authed":            ErrorCodeNotAuthed,
	"invalid_auth":          ErrorCodeInvalidAuth,
	"account_inactive":      ErrorCodeAccountInactive,
	"token_revoked":         ErrorCodeTokenRevoked,
	"channel_not_found":     ErrorCodeChannelNotFound,
	"not_in_channel":        ErrorCodeNotInChannel,
	"user_not_found":        ErrorCodeUserNotFound,
	"message_not_found":     ErrorCodeMessageNotFound,
	"rate_limited":          ErrorCodeRateLimited,
	"migration_in_progress": ErrorCodeMigrationInProgress,
	"request_timeout":       ErrorCodeRequestTimeout,
}

type ApiError struct {
	Code    ErrorCode
	Message string
}

func newApiError(remoteCode string) *ApiError {
	code, ok := knownErrorCodes[remoteCode]
	if !ok {
		code = ErrorCodeUnknown
	}
	return &ApiError{
		Code:    code,
		Message: remoteCode,
	}
}

func (self *ApiError) Error() string {
	return fmt.Sprintf("api error: %s", self.Message)
}

// PlatformApi is the request/response boundary with the remote platform.
// The auth token is required at construction. There is no default credential.
type PlatformApi struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl string
	token  string
}

func NewPlatformApi(apiUrl string, token string) (*PlatformApi, error) {
	return NewPlatformApiWithContext(context.Background(), apiUrl, token)
}

func NewPlatformApiWithContext(ctx context.Context, apiUrl string, token string) (*PlatformApi, error) {
	if token == "" {
		return nil, errors.New("auth token is required")
	}
	cancelCtx, cancel := context.WithCancel(ctx)
	return &PlatformApi{
		ctx:    cancelCtx,
		cancel: cancel,
		apiUrl: apiUrl,
		token:  token,
	}, nil
}

func (self *PlatformApi) Close() {
	self.cancel()
}

type SnapshotStartArgs struct {
	SimpleLatest bool
	NoUnreads    bool
	MpimAware    bool
}

// Snapshot is the one-time bulk-state payload. The entity arrays are kept
// raw so that individually malformed records can be skipped during
// hydration without aborting the rest.
type Snapshot struct {
	Ok        bool   `json:"ok"`
	ErrorCode string `json:"error"`

	Url  string              `json:"url"`
	Team *Team               `json:"team"`
	Self *User               `json:"self"`
	Dnd  *DoNotDisturbStatus `json:"dnd"`

	Users    []json.RawMessage `json:"users"`
	Channels []json.RawMessage `json:"channels"`
	Groups   []json.RawMessage `json:"groups"`
	Mpims    []json.RawMessage `json:"mpims"`
	Ims      []json.RawMessage `json:"ims"`
	Bots     []json.RawMessage `json:"bots"`

	Subteams *SnapshotSubteams `json:"subteams"`
}

type SnapshotSubteams struct {
	All  []json.RawMessage `json:"all"`
	Self []string          `json:"self"`
}

type SnapshotStartCallback apiCallback[*Snapshot]

func (self *PlatformApi) SnapshotStart(args *SnapshotStartArgs, callback SnapshotStartCallback) {
	query := url.Values{}
	query.Set("token", self.token)
	if args != nil {
		if args.SimpleLatest {
			query.Set("simple_latest", "1")
		}
		if args.NoUnreads {
			query.Set("no_unreads", "1")
		}
		if args.MpimAware {
			query.Set("mpim_aware", "1")
		}
	}
	go get(
		self.ctx,
		fmt.Sprintf("%s/rtm.start?%s", self.apiUrl, query.Encode()),
		&Snapshot{},
		callback,
	)
}

func get[R any](ctx context.Context, url string, result R, callback apiCallback[R]) (R, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	req.Header.Add("Accept", "application/json")

	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if http.StatusOK != r.StatusCode {
		errorMessage := strings.TrimSpace(string(responseBodyBytes))
		err = errors.New(errorMessage)
		callback.Result(result, err)
		return result, err
	}

	if err != nil {
		callback.Result(result, err)
		return result, err
	}

	err = json.Unmarshal(responseBodyBytes, &result)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	if err := remoteError(result); err != nil {
		callback.Result(result, err)
		return result, err
	}

	callback.Result(result, nil)
	return result, nil
}

// responses carry `ok` plus an error code when the call is rejected
type okResult interface {
	remoteErrorCode() (string, bool)
}

func (self *Snapshot) remoteErrorCode() (string, bool) {
	return self.ErrorCode, self.Ok
}

func remoteError(result any) error {
	if r, ok := result.(okResult); ok {
		if code, resultOk := r.remoteErrorCode(); !resultOk {
			return newApiError(code)
		}
	}
	return nil
}
