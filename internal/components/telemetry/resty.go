package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_dump     = "resty.dump"
)

// MessageOutput receives a full dump of every request/response pair an instrumented
// client makes, `id` is unique per client.
type MessageOutput interface {
	Write(id string, contents string) error
}

type instrumentResty struct {
	tel       API
	output    MessageOutput
	idcounter *uint64
}

// InstrumentResty reports every request made by `client` to `tel`. `output` may be nil,
// if it isn't, each exchange is also dumped to it.
func InstrumentResty(client *resty.Client, tel API, output MessageOutput) {
	var idcounter uint64
	i := instrumentResty{tel: tel, output: output, idcounter: &idcounter}

	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type reqCtxKeyType int

var reqCtxKey reqCtxKeyType

type reqCtx struct {
	id        uint64
	startTime time.Time
}

func (i instrumentResty) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	start := time.Now()
	ctx := req.Context()

	id := atomic.AddUint64(i.idcounter, 1)
	ctx = context.WithValue(ctx, reqCtxKey, reqCtx{
		id:        id,
		startTime: start,
	})
	i.tel.ReportDebug(report_resty_request, id, req.Method, req.URL)

	req.SetContext(ctx)
	return nil
}

func (i instrumentResty) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	end := time.Now()

	rc, ok := res.Request.Context().Value(reqCtxKey).(reqCtx)
	if !ok {
		// the request never passed through onBeforeRequest
		return nil
	}

	i.tel.ReportDebug(
		report_resty_response,
		rc.id,
		end.Sub(rc.startTime).String(),
		res.Status(),
	)

	if i.output != nil {
		err := i.output.Write(strconv.FormatUint(rc.id, 10), formatHttpMessage(res))
		if err != nil {
			i.tel.ReportWarning(report_resty_dump, err, rc.id)
		}
	}

	return nil
}

func (i instrumentResty) onError(req *resty.Request, err error) {
	end := time.Now()

	var duration time.Duration
	rc, ok := req.Context().Value(reqCtxKey).(reqCtx)
	if ok {
		duration = end.Sub(rc.startTime)
	}

	i.tel.ReportBroken(
		report_resty_response,
		err,
		req.Method,
		req.URL,
		duration,
	)
}

func formatHeaders(headers http.Header) string {
	var out strings.Builder
	for k, vals := range headers {
		for _, v := range vals {
			out.WriteString(fmt.Sprintf("%s: %s\n", k, v))
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return "<NO BODY AVAILABLE>"
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
// 5: response status
// 6: response url
// 7: response headers in ("Key: Value" format)
// 8: response body
const messageInfoTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%s %s

%s

%s`

func formatHttpMessage(res *resty.Response) string {
	var requestHeaders string
	if res.Request.RawRequest != nil {
		requestHeaders = formatHeaders(res.Request.RawRequest.Header)
	}
	responseHeaders := formatHeaders(res.Header())

	responseUrl := res.Request.URL
	if res.RawResponse != nil {
		redirected, err := res.RawResponse.Location()
		if err == nil {
			responseUrl = redirected.String()
		}
	}

	return fmt.Sprintf(
		messageInfoTemplate,

		res.Request.Method, res.Request.URL,
		requestHeaders,
		formatRequestBody(res.Request.RawRequest),

		strconv.Itoa(res.StatusCode()), responseUrl,
		responseHeaders,
		res.String(),
	)
}
