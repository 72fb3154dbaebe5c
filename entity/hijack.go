package entity

import (
	"strings"

	"clearance-chromedp/utils"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
)

// Verdict 拦截结果
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictFail
)

func (v Verdict) String() string {
	switch v {
	case VerdictContinue:
		return "continue"
	case VerdictFail:
		return "fail"
	}
	return "unknown"
}

// InterceptedRequest is the part of a paused request a policy may look at.
// It is only valid for the duration of one policy call.
type InterceptedRequest struct {
	RequestID    fetch.RequestID
	ResourceType network.ResourceType
	URL          string
}

// Decision is the answer to exactly one paused request.
type Decision struct {
	Verdict   Verdict
	RequestID fetch.RequestID
	Reason    network.ErrorReason
	// Modified replaces the request on continue, nil means unmodified.
	Modified *fetch.ContinueRequestParams
}

// HijackRequestFunc decides the fate of a paused request. Implementations are
// called from the CDP event goroutine, possibly for several requests at once,
// and must not keep state between calls.
type HijackRequestFunc func(InterceptedRequest) Decision

// ResourceTypes 所有已知的资源类型
var ResourceTypes = []network.ResourceType{
	network.ResourceTypeDocument,
	network.ResourceTypeStylesheet,
	network.ResourceTypeImage,
	network.ResourceTypeMedia,
	network.ResourceTypeFont,
	network.ResourceTypeScript,
	network.ResourceTypeTextTrack,
	network.ResourceTypeXHR,
	network.ResourceTypeFetch,
	network.ResourceTypePrefetch,
	network.ResourceTypeEventSource,
	network.ResourceTypeWebSocket,
	network.ResourceTypeManifest,
	network.ResourceTypeSignedExchange,
	network.ResourceTypePing,
	network.ResourceTypeCSPViolationReport,
	network.ResourceTypePreflight,
	network.ResourceTypeOther,
}

// ParseResourceType resolves a resource type name, case-insensitively.
func ParseResourceType(name string) (network.ResourceType, error) {
	name = strings.TrimSpace(name)
	typ, ok := utils.Find(ResourceTypes, func(t network.ResourceType) bool {
		return strings.EqualFold(t.String(), name)
	})
	if !ok {
		return "", errors.Errorf("unknown resource type %q", name)
	}
	return typ, nil
}

func Continue(req InterceptedRequest) Decision {
	return Decision{Verdict: VerdictContinue, RequestID: req.RequestID}
}

func Fail(req InterceptedRequest, reason network.ErrorReason) Decision {
	return Decision{Verdict: VerdictFail, RequestID: req.RequestID, Reason: reason}
}

// AllowResourceTypes continues requests of the given types and fails
// everything else, unknown types included, as blocked by client.
func AllowResourceTypes(types ...network.ResourceType) HijackRequestFunc {
	allowed := utils.Set(types)
	return func(req InterceptedRequest) Decision {
		if _, ok := allowed[req.ResourceType]; ok {
			return Continue(req)
		}
		return Fail(req, network.ErrorReasonBlockedByClient)
	}
}

// MinimalPolicy 只放行 document, script 和 xhr
func MinimalPolicy() HijackRequestFunc {
	return AllowResourceTypes(network.ResourceTypeDocument, network.ResourceTypeScript, network.ResourceTypeXHR)
}

// BlockResourceType fails the given types and lets everything else through.
// Types it does not list, including ones added to CDP later, are allowed.
func BlockResourceType(types ...network.ResourceType) HijackRequestFunc {
	blocked := utils.Set(types)
	return func(req InterceptedRequest) Decision {
		if _, ok := blocked[req.ResourceType]; ok {
			return Fail(req, network.ErrorReasonBlockedByClient)
		}
		return Continue(req)
	}
}

func BlockEverything() HijackRequestFunc {
	return func(req InterceptedRequest) Decision {
		return Fail(req, network.ErrorReasonBlockedByClient)
	}
}

// Action 转换为CDP命令
func (d Decision) Action() chromedp.Action {
	if d.Verdict == VerdictContinue {
		if d.Modified != nil {
			p := *d.Modified
			p.RequestID = d.RequestID
			return &p
		}
		return fetch.ContinueRequest(d.RequestID)
	}
	reason := d.Reason
	if reason == "" {
		reason = network.ErrorReasonBlockedByClient
	}
	return fetch.FailRequest(d.RequestID, reason)
}

func requestFromEvent(ev *fetch.EventRequestPaused) InterceptedRequest {
	req := InterceptedRequest{
		RequestID:    ev.RequestID,
		ResourceType: ev.ResourceType,
	}
	if ev.Request != nil {
		req.URL = ev.Request.URL
	}
	return req
}
