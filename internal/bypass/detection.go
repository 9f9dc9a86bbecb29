package bypass

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/FranksOps/rentwatch/pkg/httpclient"
)

// Signature describes how one bot-protection vendor shows up in a
// challenge or block response.
type Signature struct {
	Source   string
	Statuses []int
	// ServerContains matches case-insensitively against the Server header.
	ServerContains string
	// Headers are header names whose presence alone is conclusive.
	Headers []string
	// BodyAny matches if any marker occurs in the body.
	BodyAny [][]byte
	// BodyAll matches if every marker occurs in the body.
	BodyAll [][]byte
}

// DefaultSignatures returns the vendors seen in front of listing portals.
func DefaultSignatures() []Signature {
	return []Signature{
		{
			Source:         "Cloudflare",
			Statuses:       []int{http.StatusForbidden, http.StatusServiceUnavailable},
			ServerContains: "cloudflare",
			BodyAny: [][]byte{
				[]byte("cf-browser-verification"),
				[]byte("cloudflare-nginx"),
				[]byte("cf-turnstile"),
				[]byte("Attention Required! | Cloudflare"),
			},
		},
		{
			Source:         "Akamai",
			Statuses:       []int{http.StatusForbidden},
			ServerContains: "akamai",
			BodyAll:        [][]byte{[]byte("Reference #"), []byte("Access Denied")},
		},
		{
			Source:         "DataDome",
			Statuses:       []int{http.StatusForbidden},
			ServerContains: "datadome",
			Headers:        []string{"X-DataDome", "X-DataDome-Response"},
			BodyAny:        [][]byte{[]byte("geo.captcha-delivery.com"), []byte("datadome")},
		},
		{
			Source:   "PerimeterX",
			Statuses: []int{http.StatusForbidden},
			Headers:  []string{"X-Px-Captcha"},
			BodyAny: [][]byte{
				[]byte("client.perimeterx.net"),
				[]byte("px-captcha"),
				[]byte("_pxBlock"),
			},
		},
	}
}

// Detect reports the first signature matching resp, returning its source.
func Detect(resp *httpclient.Response, sigs []Signature) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, sig := range sigs {
		if sig.matches(resp) {
			return sig.Source, true
		}
	}
	return "", false
}

func (s Signature) matches(resp *httpclient.Response) bool {
	statusHit := false
	for _, code := range s.Statuses {
		if resp.StatusCode == code {
			statusHit = true
			break
		}
	}
	if !statusHit {
		return false
	}

	if s.ServerContains != "" &&
		strings.Contains(strings.ToLower(resp.Header.Get("Server")), s.ServerContains) {
		return true
	}
	for _, h := range s.Headers {
		if resp.Header.Get(h) != "" {
			return true
		}
	}
	for _, marker := range s.BodyAny {
		if bytes.Contains(resp.Body, marker) {
			return true
		}
	}
	if len(s.BodyAll) > 0 {
		for _, marker := range s.BodyAll {
			if !bytes.Contains(resp.Body, marker) {
				return false
			}
		}
		return true
	}
	return false
}
