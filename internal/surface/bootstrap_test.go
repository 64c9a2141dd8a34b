package surface_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prdraft/internal/surface"
)

func TestContentPolicy(t *testing.T) {
	t.Parallel()
	got := surface.ContentPolicy("'self'", "abc")
	want := "default-src 'none'; img-src 'self' https:; script-src 'nonce-abc'; style-src 'self' 'unsafe-inline' http: https: data:;"
	assert.Equal(t, want, got)
}

func TestBootstrap(t *testing.T) {
	t.Parallel()

	doc, err := surface.Bootstrap(surface.BootstrapParams{
		Title:          `PR Preview (<x>)`,
		Key:            `a"b`,
		Nonce:          "n0nce",
		ResourceOrigin: "'self'",
		ScriptURI:      "/media/preview.js",
	})
	require.NoError(t, err)

	assert.Contains(t, doc, `<title>PR Preview (&lt;x&gt;)</title>`)
	assert.Contains(t, doc, `<script nonce="n0nce" src="/media/preview.js" data-key="a&#34;b"></script>`)
	assert.Contains(t, doc, `http-equiv="Content-Security-Policy"`)
	assert.Contains(t, doc, "nonce-n0nce")
	assert.NotContains(t, doc, "<link")
}

func TestBootstrap_RequiresNonceAndEntry(t *testing.T) {
	t.Parallel()
	_, err := surface.Bootstrap(surface.BootstrapParams{ScriptURI: "/media/x.js"})
	assert.Error(t, err)
	_, err = surface.Bootstrap(surface.BootstrapParams{Nonce: "n"})
	assert.Error(t, err)
}

func TestContentPolicy_ConnectSource(t *testing.T) {
	t.Parallel()
	got := surface.ContentPolicy("'self'", "abc", "'self'")
	assert.Equal(t, "default-src 'none'; img-src 'self' https:; script-src 'nonce-abc'; style-src 'self' 'unsafe-inline' http: https: data:; connect-src 'self';", got)

	doc, err := surface.Bootstrap(surface.BootstrapParams{Nonce: "n", ScriptURI: "/media/x.js", ResourceOrigin: "'self'", ConnectSrc: "'self'"})
	require.NoError(t, err)
	assert.Contains(t, doc, "connect-src")
}
