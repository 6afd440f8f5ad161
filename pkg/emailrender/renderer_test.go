package emailrender_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/cache"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/emailrender"
)

func render(t *testing.T, body string) string {
	t.Helper()
	out, err := emailrender.New().Render(context.Background(), body)
	require.NoError(t, err)
	return out
}

func TestRender_WrapsFragment(t *testing.T) {
	t.Parallel()

	out := render(t, `<div style="color:red">hi</div>`)
	lower := strings.ToLower(out)

	require.Contains(t, lower, "<!doctype html>")
	require.Contains(t, lower, "<html>")
	require.Contains(t, lower, `charset="utf-8"`)
	require.Contains(t, lower, `name="viewport"`)
	require.Contains(t, out, "color: red;")
	require.Contains(t, out, "hi")
}

func TestRender_KeepsFullDocument(t *testing.T) {
	t.Parallel()

	out := render(t, `<!DOCTYPE html><html><head><title></title></head><body><p>hello</p></body></html>`)

	require.Contains(t, out, "<p>hello</p>")
	// The wrap boilerplate must not be applied twice.
	require.Equal(t, 1, strings.Count(strings.ToLower(out), "<body"))
}

func TestRender_KeepsDocumentBehindLeadingComment(t *testing.T) {
	t.Parallel()

	out := render(t, `<!-- preheader --><!DOCTYPE html><html><head><title></title></head><body><p>hello</p></body></html>`)

	require.Contains(t, out, "<p>hello</p>")
	require.Equal(t, 1, strings.Count(strings.ToLower(out), "<body"))
	require.Equal(t, 1, strings.Count(strings.ToLower(out), "<html"))
}

func TestRender_InlinesStyleRules(t *testing.T) {
	t.Parallel()

	out := render(t, `<style>.title { color: blue; font-size: 24px; }</style><h1 class="title">Hey</h1>`)

	require.NotContains(t, out, "<style>")
	require.Contains(t, out, "color: blue;")
	require.Contains(t, out, "font-size: 24px;")
}

func TestRender_InlineAttributeWinsOverStylesheet(t *testing.T) {
	t.Parallel()

	out := render(t, `<style>p { color: blue; }</style><p style="color: green;">x</p>`)

	// The author's inline value is written last so it wins the cascade.
	blue := strings.Index(out, "color: blue")
	green := strings.Index(out, "color: green")
	require.Greater(t, blue, -1)
	require.Greater(t, green, blue)
}

func TestRender_LaterRuleWinsCascade(t *testing.T) {
	t.Parallel()

	out := render(t, `<style>p { color: blue; } p { color: red; }</style><p>x</p>`)

	// Equal specificity: the later stylesheet rule must land later in the
	// attribute, where the last declaration wins.
	blue := strings.Index(out, "color: blue")
	red := strings.Index(out, "color: red")
	require.Greater(t, blue, -1)
	require.Greater(t, red, blue)
}

func TestRender_MoreSpecificRuleWinsCascade(t *testing.T) {
	t.Parallel()

	out := render(t, `<style>.title { color: red; } p { color: blue; }</style><p class="title">x</p>`)

	// The class selector outranks the tag selector even though its rule
	// appears first in the stylesheet.
	blue := strings.Index(out, "color: blue")
	red := strings.Index(out, "color: red")
	require.Greater(t, blue, -1)
	require.Greater(t, red, blue)
}

func TestRender_DropsMediaQueries(t *testing.T) {
	t.Parallel()

	out := render(t, `<style>
@media (max-width: 600px) { .m { padding: 4px; } }
@font-face { font-family: X; src: url(https://example.com/x.woff); }
.m { margin: 0; }
</style><div class="m">x</div>`)

	require.NotContains(t, out, "padding: 4px")
	require.NotContains(t, out, "font-face")
	require.Contains(t, out, "margin: 0;")
}

func TestRender_PreservesImportant(t *testing.T) {
	t.Parallel()

	out := render(t, `<style>.b { color: red !important; }</style><span class="b">x</span>`)

	require.Contains(t, out, "color: red !important;")
}

func TestRender_TableDefaults(t *testing.T) {
	t.Parallel()

	out := render(t, `<table><tr><td>x</td></tr></table>`)

	require.Contains(t, out, `cellpadding="0"`)
	require.Contains(t, out, `cellspacing="0"`)
	require.Contains(t, out, `border="0"`)
}

func TestRender_TableExplicitPaddingKept(t *testing.T) {
	t.Parallel()

	out := render(t, `<table cellpadding="8"><tr><td>x</td></tr></table>`)

	require.Contains(t, out, `cellpadding="8"`)
	require.NotContains(t, out, `cellpadding="0"`)
}

func TestRender_ImageReset(t *testing.T) {
	t.Parallel()

	out := render(t, `<img src="https://example.com/a.png" alt="a">`)

	require.Contains(t, out, "display: block;")
	require.Contains(t, out, "border: 0;")
	require.Contains(t, out, "text-decoration: none;")
}

func TestRender_LineHeightGainsOutlookHint(t *testing.T) {
	t.Parallel()

	out := render(t, `<p style="line-height: 24px;">x</p>`)

	require.Contains(t, out, "line-height: 24px;")
	require.Contains(t, out, "mso-line-height-rule: exactly;")
}

func TestRender_StripsFragileDeclarations(t *testing.T) {
	t.Parallel()

	out := render(t, `<div style="box-shadow: 0 0 4px #000; text-shadow: 1px 1px #000; transform: scale(1.1); color: red;">x</div>`)

	require.NotContains(t, out, "box-shadow")
	require.NotContains(t, out, "text-shadow")
	require.NotContains(t, out, "transform")
	require.Contains(t, out, "color: red;")
}

func TestRender_StripsScripts(t *testing.T) {
	t.Parallel()

	out := render(t, `<div onclick="steal()">x</div><script>alert(1)</script><a href="javascript:evil()">y</a>`)

	require.NotContains(t, out, "script")
	require.NotContains(t, out, "onclick")
	require.NotContains(t, out, "javascript:")
}

func TestRender_Idempotent(t *testing.T) {
	t.Parallel()

	input := `<style>p { line-height: 20px; }</style>
<p>text</p>
<img src="https://example.com/a.png" alt="a">
<table><tr><td>cell</td></tr></table>`

	r := emailrender.New()
	once, err := r.Render(context.Background(), input)
	require.NoError(t, err)

	twice, err := r.Render(context.Background(), once)
	require.NoError(t, err)

	require.Equal(t, 1, strings.Count(twice, "display: block;"))
	require.Equal(t, 1, strings.Count(twice, "mso-line-height-rule: exactly;"))
	require.Equal(t, 1, strings.Count(twice, `cellpadding="0"`))
}

func TestRender_CacheHit(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory[string](cache.WithCleanupInterval(0), cache.WithDefaultTTL(time.Minute))
	defer c.Close()

	r := emailrender.New(emailrender.WithCache(c))

	ctx := context.Background()
	first, err := r.Render(ctx, `<p>cached</p>`)
	require.NoError(t, err)

	second, err := r.Render(ctx, `<p>cached</p>`)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestAddress(t *testing.T) {
	t.Parallel()

	require.Equal(t, "alice@example.com", emailrender.Address("", "alice@example.com"))
	require.Equal(t, "Alice <alice@example.com>", emailrender.Address("Alice", "alice@example.com"))
	// Non-ASCII names pass through untouched.
	require.Equal(t, "Ălïcé <alice@example.com>", emailrender.Address("Ălïcé", "alice@example.com"))
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	msg := emailrender.Assemble(emailrender.Envelope{
		From:    "Alice <alice@example.com>",
		To:      []string{"b@example.com", "c@example.org"},
		Subject: "Hello",
		ReplyTo: "reply@example.com",
	}, "<html><body>hi</body></html>")

	decoded, err := base64.RawURLEncoding.DecodeString(msg.RawBase64URL)
	require.NoError(t, err)

	raw := string(decoded)
	require.Contains(t, raw, "To: b@example.com, c@example.org\r\n")
	require.Contains(t, raw, "From: Alice <alice@example.com>\r\n")
	require.Contains(t, raw, "Subject: Hello\r\n")
	require.Contains(t, raw, "Reply-To: reply@example.com\r\n")
	require.Contains(t, raw, "MIME-Version: 1.0\r\n")
	require.Contains(t, raw, "Content-Type: text/html; charset=UTF-8\r\n\r\n<html>")

	// Unpadded base64url: no '=', '+' or '/'.
	require.NotContains(t, msg.RawBase64URL, "=")
	require.NotContains(t, msg.RawBase64URL, "+")
	require.NotContains(t, msg.RawBase64URL, "/")
}

func TestAssemble_NoReplyTo(t *testing.T) {
	t.Parallel()

	msg := emailrender.Assemble(emailrender.Envelope{
		From:    "a@example.com",
		To:      []string{"b@example.com"},
		Subject: "s",
	}, "<p>x</p>")

	decoded, err := base64.RawURLEncoding.DecodeString(msg.RawBase64URL)
	require.NoError(t, err)
	require.NotContains(t, string(decoded), "Reply-To:")
}
