package csp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const proxy = "http://localhost:8080"
const upstream = "https://example.com"

func TestStripsUpgradeInsecure(t *testing.T) {
	csp := "default-src 'self'; upgrade-insecure-requests; script-src 'none'"
	result := RewriteCSP(proxy, upstream, csp)
	assert.NotContains(t, result, "upgrade-insecure-requests")
	assert.Contains(t, result, "default-src")
	assert.Contains(t, result, "script-src 'none'")
}

func TestStripsBlockAllMixed(t *testing.T) {
	csp := "block-all-mixed-content; default-src *"
	result := RewriteCSP(proxy, upstream, csp)
	assert.NotContains(t, result, "block-all-mixed-content")
}

func TestAddsProxyOrigin(t *testing.T) {
	csp := "script-src 'self' https://cdn.example.com"
	result := RewriteCSP(proxy, upstream, csp)
	assert.Contains(t, result, proxy)
}

func TestPreservesNonces(t *testing.T) {
	csp := "script-src 'nonce-abc123' 'self'"
	result := RewriteCSP(proxy, upstream, csp)
	assert.Contains(t, result, "'nonce-abc123'")
}

func TestExtractNonceWorks(t *testing.T) {
	csp := "script-src 'nonce-r4nd0m' 'self'; style-src *"
	nonce, ok := ExtractNonce(csp)
	assert.True(t, ok)
	assert.Equal(t, "r4nd0m", nonce)
}

func TestExtractNonceAbsent(t *testing.T) {
	_, ok := ExtractNonce("default-src 'self'")
	assert.False(t, ok)
}

func TestKeepsReportDirectivesVerbatim(t *testing.T) {
	csp := "report-uri /csp-report; sandbox allow-forms"
	result := RewriteCSP(proxy, upstream, csp)
	assert.Contains(t, result, "report-uri /csp-report")
	assert.Contains(t, result, "sandbox allow-forms")
}

func TestDoublesRewrittenToken(t *testing.T) {
	csp := "img-src https://cdn.example.com"
	result := RewriteCSP(proxy, upstream, csp)
	// The rewritten proxy form and the original token both survive.
	assert.Contains(t, result, "proxy?url=")
	assert.Contains(t, result, "https://cdn.example.com")
}
