package ssrdata

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/ssrdata/internal/errors"
	"github.com/vango-dev/ssrdata/pkg/archive"
	"github.com/vango-dev/ssrdata/pkg/auth"
	"github.com/vango-dev/ssrdata/pkg/cookie"
	"github.com/vango-dev/ssrdata/pkg/render"
	"github.com/vango-dev/ssrdata/pkg/ssr"
	"github.com/vango-dev/ssrdata/pkg/vdom"
)

// TitleKey is the prop read for the document title.
const TitleKey = "title"

const archiveTimeout = 5 * time.Second

// pageHandler renders wd for a GET request:
//
//  1. run the initializer and drain the tree (InitialProps)
//  2. stop if the initializer already answered, e.g. with a redirect
//  3. mount the page from the props, exactly as the browser will
//  4. render the document with the props embedded as the page payload
//  5. archive the payload
func (a *App) pageHandler(wd *ssr.WithData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ec := ssr.NewContext(w, r)
		logger := a.logger.With("page", wd.DisplayName(), "path", r.URL.Path, "request_id", ec.ID)
		if p, ok := auth.PrincipalFrom(r.Context()); ok {
			logger = logger.With(p.LogAttrs()...)
		}
		ec.Logger = logger

		props, err := wd.InitialProps(r.Context(), ec)
		if err != nil {
			a.fail(ec, logger, err)
			return
		}
		if ec.Finished() {
			logger.Debug("response finished by initializer", "status", ec.Response.Status())
			return
		}
		props = props.With(ssr.URLKey, ec.URL())

		m, err := wd.Mount(props, cookie.RequestJar(r))
		if err != nil {
			a.fail(ec, logger, err)
			return
		}
		defer m.Close()

		if !a.writeDocument(ec, logger, a.document(vdom.Comp(m), props)) {
			return
		}

		a.archiveProps(r.Context(), logger, archive.Entry{
			Page:      wd.DisplayName(),
			RequestID: ec.ID,
			Path:      r.URL.RequestURI(),
			At:        time.Now(),
		}, props)
	}
}

// writeDocument renders doc to the response and reports whether the page
// was sent whole. Buffered output turns a render failure into a 500;
// streamed output has already committed the status by then, so the page is
// cut short.
func (a *App) writeDocument(ec *ssr.Context, logger *slog.Logger, doc render.PageData) bool {
	config := render.RendererConfig{Pretty: a.config.Render.Pretty}
	ec.Response.Header().Set("Content-Type", "text/html; charset=utf-8")

	if a.config.Render.Stream {
		ec.Response.WriteHeader(http.StatusOK)
		if err := render.NewStreamingRenderer(ec.Response, config).RenderPage(doc); err != nil {
			logger.Error("streamed render failed", logAttrs(errors.FromError(err, "E106"))...)
			return false
		}
		return true
	}

	var buf bytes.Buffer
	if err := render.NewRenderer(config).RenderPage(&buf, doc); err != nil {
		ec.Response.Header().Del("Content-Type")
		a.fail(ec, logger, errors.FromError(err, "E106"))
		return false
	}
	ec.Response.WriteHeader(http.StatusOK)
	if _, err := ec.Response.Write(buf.Bytes()); err != nil {
		logger.Debug("response write failed", "error", err)
	}
	return true
}

func (a *App) document(body *vdom.VNode, props ssr.Props) render.PageData {
	title, _ := props[TitleKey].(string)
	return render.PageData{
		Body:        body,
		Title:       title,
		Lang:        a.config.Render.Lang,
		Scripts:     a.scripts,
		StyleSheets: a.styleSheets,
		State:       props,
	}
}

// archiveProps stores the payload of a served page. Failures are logged and
// counted, never returned.
func (a *App) archiveProps(ctx context.Context, logger *slog.Logger, e archive.Entry, props ssr.Props) {
	if a.archive == nil {
		return
	}
	payload, err := ssr.EncodePayload(props)
	if err == nil {
		e.Payload = payload
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		err = a.archive.Put(ctx, e)
	}
	if err != nil {
		logger.Warn("snapshot archive failed", logAttrs(err)...)
		if a.metrics != nil {
			a.metrics.RecordArchiveError()
		}
	}
}

// fail logs err and answers 500 unless the response is already written.
func (a *App) fail(ec *ssr.Context, logger *slog.Logger, err error) {
	logger.Error("page request failed", logAttrs(err)...)
	if ec.Finished() {
		return
	}
	body := http.StatusText(http.StatusInternalServerError)
	if code := errors.Code(err); code != "" {
		body = fmt.Sprintf("%s (%s)", body, code)
	}
	http.Error(ec.Response, body, http.StatusInternalServerError)
}

func logAttrs(err error) []any {
	var se *errors.SSRError
	if stderrors.As(err, &se) {
		return se.LogAttrs()
	}
	return []any{"error", err}
}
