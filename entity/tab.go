package entity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"clearance-chromedp/utils"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Node 重定向节点
type Node struct {
	Url string // URL
	Way string // 重定向方式
}

type Tab struct {
	Parent *Browser
	Ctx    context.Context
	Cancel context.CancelFunc
	URL    string
	Logger logrus.FieldLogger

	mu                sync.Mutex
	closeOnce         sync.Once
	Events            []any
	FrameID           cdp.FrameID
	LoaderID          cdp.LoaderID
	LastRequestID     network.RequestID
	LastLoaderID      cdp.LoaderID
	FirstResponse     *network.Response
	LastResponse      *network.Response
	HijackRequestFunc HijackRequestFunc
	Header            Header

	Allowed atomic.Int64 // 放行的请求数
	Blocked atomic.Int64 // 拦截的请求数
}

type Header struct {
	UserAgent string
}

type TabOption func(*Tab)

// WithUserAgent overrides the user agent of the tab. Empty keeps the browser's own.
func WithUserAgent(ua string) TabOption {
	return func(t *Tab) {
		t.Header.UserAgent = ua
	}
}

func (t *Tab) Close() {
	t.closeOnce.Do(func() {
		chromedp.Cancel(t.Ctx)
		t.Cancel()

		t.Parent.Tabs.Delete(t)
		<-t.Parent.Pool
	})
}

func (t *Tab) BuildHooks() chromedp.Tasks {
	tasks := make([]chromedp.Action, 0)

	if t.Header.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(t.Header.UserAgent))
	}

	tasks = append(tasks, network.Enable())

	tasks = append(tasks, t.FetchAllEvents(t.HandleJSDialog())) // 可注入自定义监听事件,同时获取所有事件

	tasks = append(tasks, t.Navigate())

	return tasks
}

func (t *Tab) Navigate() chromedp.ActionFunc {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		var errorText string
		t.FrameID, t.LoaderID, errorText, err = page.Navigate(t.URL).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return errors.New(errorText)
		}
		return nil
	})
}

func (t *Tab) FetchAllEvents(funcs ...func(e any)) chromedp.ActionFunc {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		chromedp.ListenTarget(ctx, func(ev interface{}) {
			for _, f := range funcs {
				f(ev)
			}
			t.mu.Lock()
			t.Events = append(t.Events, ev)
			t.mu.Unlock()
		})
		return nil
	})
}

// Hijack 注册拦截策略, 每个暂停的请求都会得到一个决定
// Fetch 域需要另外通过 EnableFetch 开启
func (t *Tab) Hijack(fn HijackRequestFunc) {
	t.HijackRequestFunc = fn
	chromedp.ListenTarget(t.Ctx, func(ev interface{}) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		d := fn(requestFromEvent(e))
		if d.Verdict == VerdictContinue {
			t.Allowed.Add(1)
		} else {
			t.Blocked.Add(1)
		}
		// 监听回调中不能阻塞执行命令
		go func() {
			if err := chromedp.Run(t.Ctx, d.Action()); err != nil && t.Ctx.Err() == nil {
				t.Logger.WithFields(logrus.Fields{
					"request_id":    e.RequestID,
					"resource_type": e.ResourceType,
					"verdict":       d.Verdict,
				}).WithError(err).Warn("answer paused request")
			}
		}()
	})
}

// EnableFetch 开启请求阶段拦截
func (t *Tab) EnableFetch() error {
	err := chromedp.Run(t.Ctx, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
		{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
	}))
	return errors.Wrap(err, "enable fetch")
}

// WaitReady 等待元素出现, 超时返回 context.DeadlineExceeded
func (t *Tab) WaitReady(selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(t.Ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil && ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), "wait for %q", selector)
	}
	return errors.Wrapf(err, "wait for %q", selector)
}

// Cookies 当前页面的cookie
func (t *Tab) Cookies() ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(t.Ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, errors.Wrap(err, "get cookies")
	}
	return cookies, nil
}

func (t *Tab) FetchRedirectNodes() []Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	nodes := make([]Node, 0)
	for _, ev := range t.Events {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument {
				t.LastResponse = e.Response
				if t.FrameID == e.FrameID {
					t.FirstResponse = e.Response
				}
			}
		case *network.EventRequestWillBeSent:
			if e.Type == network.ResourceTypeDocument {
				t.LastRequestID = e.RequestID
				t.LastLoaderID = e.LoaderID
				way := ""
				if e.Initiator != nil {
					way = e.Initiator.Type.String()
				}
				nodes = append(nodes, Node{
					Url: e.Request.URL,
					Way: way,
				})
			}
		}
	}
	return utils.Unique[Node](nodes)
}

// HandleJSDialog 关闭js对话框
func (t *Tab) HandleJSDialog() func(e any) {
	return func(e any) {
		switch e.(type) {
		case *page.EventJavascriptDialogOpening:
			go chromedp.Run(t.Ctx, page.HandleJavaScriptDialog(false))
		}
	}
}
