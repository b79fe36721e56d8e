package acs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-threeds/core"
)

const (
	FieldPaReq   = "PaReq"
	FieldPaRes   = "PaRes"
	FieldTermURL = "TermUrl"
	FieldMD      = "MD"
	FieldCReq    = "creq"
	FieldCRes    = "cres"

	DefaultSessionDataField = "threeDSSessionData"
)

const defaultClientTimeout = 30 * time.Second
const maxPageBytes int64 = 1 << 20

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client drives the browser side of an issuer challenge: it posts the
// challenge request to the ACS and reads the response the ACS hands back
// for the merchant.
type Client struct {
	HTTP   HTTPDoer
	Logger core.Logger
}

func NewClient(doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{
		HTTP:   doer,
		Logger: glog.Ensure(nil),
	}
}

func (c *Client) Authenticate(ctx context.Context, req core.ChallengeRequest) (core.ChallengeResult, error) {
	if c == nil || c.HTTP == nil {
		return core.ChallengeResult{}, acsError("acs: client requires an http client", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	acsURL := strings.TrimSpace(req.IssuerAcsURL)
	payload := strings.TrimSpace(req.PayerAuthenticationRequest)
	if acsURL == "" || payload == "" {
		return core.ChallengeResult{}, acsError(
			"acs: challenge requires an acs url and a payer authentication request",
			goerrors.CategoryBadInput,
			core.ErrorBadInput,
			map[string]any{"server_transaction_id": req.ServerTransactionID},
		)
	}

	var (
		values       = url.Values{}
		responseName string
		sessionName  string
	)
	switch req.Version {
	case core.VersionOne:
		values.Set(FieldPaReq, payload)
		values.Set(FieldTermURL, strings.TrimSpace(req.TermURL))
		values.Set(FieldMD, req.MerchantData)
		responseName, sessionName = FieldPaRes, FieldMD
	case core.VersionTwo, "":
		sessionName = strings.TrimSpace(req.SessionDataFieldName)
		if sessionName == "" {
			sessionName = DefaultSessionDataField
		}
		values.Set(FieldCReq, payload)
		values.Set(sessionName, req.MerchantData)
		responseName = FieldCRes
	default:
		return core.ChallengeResult{}, core.NewUnsupportedVersionError(req.Version, "unknown protocol version")
	}

	form, err := c.post(ctx, acsURL, values)
	if err != nil {
		return core.ChallengeResult{}, err
	}
	response := strings.TrimSpace(form.Value(responseName))
	if response == "" {
		return core.ChallengeResult{}, acsError(
			fmt.Sprintf("acs: response page has no %s field", responseName),
			goerrors.CategoryExternal,
			core.ErrorDownstreamProtocol,
			map[string]any{"server_transaction_id": req.ServerTransactionID, "acs_url": acsURL},
		)
	}
	c.logger().Debug("acs challenge completed",
		"server_transaction_id", req.ServerTransactionID,
		"version", string(req.Version),
		"return_url", form.Action,
	)
	return core.ChallengeResult{
		AuthenticationResponse: response,
		MerchantData:           form.Value(sessionName),
	}, nil
}

func (c *Client) post(ctx context.Context, acsURL string, values url.Values) (Form, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, acsURL, strings.NewReader(values.Encode()))
	if err != nil {
		return Form{}, acsWrapError(err, goerrors.CategoryBadInput, core.ErrorBadInput, "acs: invalid acs url", map[string]any{"acs_url": acsURL})
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "text/html")

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Form{}, acsWrapError(err, goerrors.CategoryExternal, core.ErrorTransport, "acs: post challenge request", map[string]any{"acs_url": acsURL})
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Form{}, acsError(
			fmt.Sprintf("acs: challenge request returned status %d", res.StatusCode),
			goerrors.CategoryExternal,
			core.ErrorDownstreamProtocol,
			map[string]any{"acs_url": acsURL, "status_code": res.StatusCode},
		)
	}

	form, found, err := ParseForm(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return Form{}, acsWrapError(err, goerrors.CategoryExternal, core.ErrorDownstreamProtocol, "acs: read response page", map[string]any{"acs_url": acsURL})
	}
	if !found {
		return Form{}, acsError("acs: response page has no form", goerrors.CategoryExternal, core.ErrorDownstreamProtocol, map[string]any{"acs_url": acsURL})
	}
	return form, nil
}

func (c *Client) logger() core.Logger {
	if c.Logger == nil {
		return glog.Ensure(nil)
	}
	return c.Logger
}

func acsError(message string, category goerrors.Category, textCode string, metadata map[string]any) error {
	err := goerrors.New(message, category).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func acsWrapError(source error, category goerrors.Category, textCode string, message string, metadata map[string]any) error {
	err := goerrors.Wrap(source, category, message).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

var _ core.ChallengeClient = (*Client)(nil)
