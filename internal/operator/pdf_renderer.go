package operator

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const defaultRenderTimeout = 30 * time.Second

type ReportPDFRenderer interface {
	Render(ctx context.Context, markdown string) ([]byte, error)
}

// PageLayout is a paper size and margins, all in inches.
type PageLayout struct {
	Width, Height            float64
	Top, Bottom, Left, Right float64
}

var (
	LayoutA4     = PageLayout{Width: 8.27, Height: 11.69, Top: 0.6, Bottom: 0.75, Left: 0.6, Right: 0.6}
	LayoutLetter = PageLayout{Width: 8.5, Height: 11, Top: 0.6, Bottom: 0.75, Left: 0.7, Right: 0.7}
)

// ParsePageLayout maps a paper name ("a4", "letter") to its layout.
func ParsePageLayout(name string) (PageLayout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "a4":
		return LayoutA4, nil
	case "letter":
		return LayoutLetter, nil
	}
	return PageLayout{}, fmt.Errorf("unknown paper size %q", name)
}

const pageFooter = `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
	`MedLite summary, page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`

// ChromiumPDFRenderer prints a markdown summary report through headless Chrome.
type ChromiumPDFRenderer struct {
	chromePath string
	timeout    time.Duration
	layout     PageLayout
}

func NewChromiumPDFRenderer(layout PageLayout) *ChromiumPDFRenderer {
	return &ChromiumPDFRenderer{
		chromePath: detectChromePath(),
		timeout:    defaultRenderTimeout,
		layout:     layout,
	}
}

func (r *ChromiumPDFRenderer) Render(ctx context.Context, markdown string) ([]byte, error) {
	htmlDoc, err := buildHTML(markdown)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	browserCtx, closeBrowser := r.browser(timeoutCtx)
	defer closeBrowser()

	var pdf []byte
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(htmlDoc))),
		chromedp.WaitReady("body", chromedp.ByQuery),
		printPDF(r.layout, &pdf),
	); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

// browser starts a headless Chrome bound to ctx. The returned func tears
// down both the tab and the process.
func (r *ChromiumPDFRenderer) browser(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	return tabCtx, func() {
		tabCancel()
		allocCancel()
	}
}

func printPDF(layout PageLayout, dst *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		out, _, err := printParams(layout).Do(ctx)
		if err != nil {
			return err
		}
		*dst = out
		return nil
	})
}

func printParams(layout PageLayout) *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate(`<div></div>`).
		WithFooterTemplate(pageFooter).
		WithPaperWidth(layout.Width).
		WithPaperHeight(layout.Height).
		WithMarginTop(layout.Top).
		WithMarginBottom(layout.Bottom).
		WithMarginLeft(layout.Left).
		WithMarginRight(layout.Right)
}

const reportCSS = `body{font-family:"Helvetica Neue",Arial,sans-serif;color:#1f2933;line-height:1.5;margin:0;padding:0.4rem;}
h1{font-size:1.6rem;color:#0b4f6c;border-bottom:2px solid #0b4f6c;padding-bottom:0.3rem;}
h2{font-size:1.15rem;color:#0b4f6c;margin-top:1.4rem;}
blockquote.disclaimer{background:#fff7e6;border-left:4px solid #f0a202;margin:0;padding:0.5rem 0.8rem;font-size:0.85rem;color:#5c4400;}
section[data-section="patient"]{background:#eef7fb;border-radius:6px;padding:0.1rem 0.8rem 0.6rem;}
section[data-section="details"]{break-inside:avoid;page-break-inside:avoid;}
ol li{margin-bottom:0.25rem;}
table{width:100%;border-collapse:collapse;font-size:0.8rem;}
th,td{border:1px solid #c5ced6;padding:0.3rem 0.45rem;text-align:left;vertical-align:top;}
thead th{background:#f1f5f9;}
html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}
@media print{@page{size:auto;margin:12mm;}}`

func buildHTML(markdown string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>Medical Report Summary</title>" +
		"<style>" + reportCSS + "</style></head><body><main class='report'>" +
		applyPrintLayoutHooks(content.String()) +
		"</main></body></html>", nil
}

var (
	disclaimerPattern     = regexp.MustCompile(`(?s)^(.*?)<blockquote>`)
	patientSectionPattern = regexp.MustCompile(`(?s)<h2([^>]*)>\s*What This Means For You\s*</h2>(.*?)(<h2|$)`)
	detailsSectionPattern = regexp.MustCompile(`(?s)<h2([^>]*)>\s*Details\s*</h2>(.*)$`)
)

// applyPrintLayoutHooks marks the first blockquote as the disclaimer and wraps
// the patient-friendly and details sections so the stylesheet can target them.
func applyPrintLayoutHooks(contentHTML string) string {
	out := disclaimerPattern.ReplaceAllString(contentHTML, `$1<blockquote class="disclaimer">`)
	out = patientSectionPattern.ReplaceAllString(out,
		`<section data-section="patient"><h2$1>What This Means For You</h2>$2</section>$3`)
	out = detailsSectionPattern.ReplaceAllString(out, `<section data-section="details"><h2$1>Details</h2>$2</section>`)
	return out
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
