package surface

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

var bootstrapTmpl = template.Must(template.New("bootstrap").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta http-equiv="Content-Security-Policy" content="{{.Policy}}">
<title>{{.Title}}</title>
{{- if .StyleURI}}
<link rel="stylesheet" href="{{.StyleURI}}">
{{- end}}
</head>
<body>
<div id="root"></div>
<script nonce="{{.Nonce}}" src="{{.ScriptURI}}" data-key="{{.Key}}"></script>
</body>
</html>
`))

type BootstrapParams struct {
	Title          string
	Key            string
	Nonce          string
	ResourceOrigin string
	ScriptURI      string
	StyleURI       string
	// ConnectSrc, when set, lets the entry script open its message channel.
	ConnectSrc string
}

// ContentPolicy is the Content-Security-Policy of a surface: nothing loads by default,
// only the nonce-tagged script runs, and images and styles come from the media origin.
// Hosts whose message channel is a network connection pass its source as connectSrc.
func ContentPolicy(resourceOrigin, nonce string, connectSrc ...string) string {
	origin := strings.TrimSpace(resourceOrigin)
	policy := fmt.Sprintf("default-src 'none'; img-src %s https:; script-src 'nonce-%s'; style-src %s 'unsafe-inline' http: https: data:;",
		origin, nonce, origin)
	if len(connectSrc) > 0 {
		policy += " connect-src " + strings.Join(connectSrc, " ") + ";"
	}
	return policy
}

func Bootstrap(p BootstrapParams) (string, error) {
	if strings.TrimSpace(p.Nonce) == "" {
		return "", errors.New("bootstrap: missing nonce")
	}
	if strings.TrimSpace(p.ScriptURI) == "" {
		return "", errors.New("bootstrap: missing entry script")
	}
	vm := struct {
		BootstrapParams
		Policy string
	}{p, policyFor(p)}

	var b bytes.Buffer
	if err := bootstrapTmpl.Execute(&b, vm); err != nil {
		return "", err
	}
	return b.String(), nil
}

func policyFor(p BootstrapParams) string {
	if c := strings.TrimSpace(p.ConnectSrc); c != "" {
		return ContentPolicy(p.ResourceOrigin, p.Nonce, c)
	}
	return ContentPolicy(p.ResourceOrigin, p.Nonce)
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
