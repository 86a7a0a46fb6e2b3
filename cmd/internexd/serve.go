package main

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"internex/internal/logging"
	"internex/pkg/css"
	"internex/pkg/csp"
	"internex/pkg/htmlrewrite"
	"internex/pkg/jsrewrite"
	"internex/pkg/urlcodec"
)

var (
	listenAddr  string
	proxyOrigin string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the demo proxy server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "address to listen on")
	serveCmd.Flags().StringVar(&proxyOrigin, "proxy-origin", "http://localhost:8080", "origin this server is reachable at, used to build /proxy?url= links")
}

func runServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/internex.runtime.js", serveRuntimeStub)
	mux.HandleFunc("/proxy", proxyHandler)

	logging.Logger.Info().Str("addr", listenAddr).Str("proxy_origin", proxyOrigin).Msg("listening")
	return http.ListenAndServe(listenAddr, mux)
}

// serveRuntimeStub serves a minimal __internex runtime object implementing
// the wrap/rewriteUrl/rewriteHtml/rewriteEval/scope contract that rewritten
// pages call into. A real client runtime would resolve proxied URLs and
// scope event handlers at render time; this stub only keeps rewritten
// pages from throwing when no such runtime is wired up.
func serveRuntimeStub(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	io.WriteString(w, `window.__internex = window.__internex || {
	wrap: function (v) { return v; },
	rewriteUrl: function (v) { return v; },
	rewriteHtml: function (v) { return v; },
	rewriteEval: function (v) { return v; },
	scope: function (self, fn) { return fn; },
};`)
}

func proxyHandler(w http.ResponseWriter, r *http.Request) {
	upstream, ok := urlcodec.Decode(r.URL.Query().Get("url"))
	if !ok {
		http.Error(w, "missing or invalid url parameter", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstream, r.Body)
	if err != nil {
		http.Error(w, "failed to build upstream request", http.StatusInternalServerError)
		return
	}
	for key, values := range r.Header {
		if strings.EqualFold(key, "Host") {
			continue
		}
		// Leave Accept-Encoding unset so the transport negotiates and
		// transparently decompresses gzip itself; forwarding the
		// client's value here would make resp.Body arrive still
		// compressed while rewriteBody expects plain text.
		if strings.EqualFold(key, "Accept-Encoding") {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logging.Logger.Warn().Err(err).Str("upstream", upstream).Msg("upstream request failed")
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "failed to read upstream response", http.StatusBadGateway)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	body = rewriteBody(contentType, upstream, body)

	for key, values := range resp.Header {
		if strings.EqualFold(key, "Content-Security-Policy") {
			for _, v := range values {
				w.Header().Add(key, csp.RewriteCSP(proxyOrigin, originOf(upstream), v))
			}
			continue
		}
		if strings.EqualFold(key, "Content-Length") {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

func rewriteBody(contentType, upstream string, body []byte) []byte {
	switch {
	case strings.Contains(contentType, "text/html"):
		return []byte(htmlrewrite.RewriteHTML(proxyOrigin, upstream, string(body)))
	case strings.Contains(contentType, "text/css"):
		return []byte(css.RewriteCSS(proxyOrigin, upstream, string(body)))
	case strings.Contains(contentType, "javascript"):
		return []byte(jsrewrite.RewriteJS(proxyOrigin, string(body)))
	default:
		return body
	}
}

func originOf(rawURL string) string {
	if idx := strings.Index(rawURL, "://"); idx >= 0 {
		rest := rawURL[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			rest = rest[:slash]
		}
		scheme := rawURL[:idx]
		return scheme + "://" + rest
	}
	return rawURL
}
