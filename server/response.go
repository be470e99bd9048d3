package server

import (
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/startreedata/warehouse-gateway/codec"
	"github.com/startreedata/warehouse-gateway/gateway"
)

// Bodies smaller than this are sent uncompressed.
const minCompressBytes = 1024

type errorResponse struct {
	Detail string `json:"detail"`
}

// negotiateEncoding picks a Content-Encoding the client accepts, preferring zstd.
func negotiateEncoding(acceptEncoding string) (contentEncoding string, compression string) {
	accepted := map[string]bool{}
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			continue
		}
		accepted[strings.ToLower(strings.TrimSpace(name))] = true
	}
	switch {
	case accepted["zstd"]:
		return "zstd", codec.CompressionZstd
	case accepted["gzip"]:
		return "gzip", codec.CompressionGzip
	default:
		return "", codec.CompressionNone
	}
}

func writeBody(w http.ResponseWriter, r *http.Request, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Add("Vary", "Accept-Encoding")
	if len(body) >= minCompressBytes {
		if contentEncoding, compression := negotiateEncoding(r.Header.Get("Accept-Encoding")); contentEncoding != "" {
			compressed, err := codec.Compress(body, compression)
			if err != nil {
				log.Error("Unable to compress response body. ", err)
			} else {
				w.Header().Set("Content-Encoding", contentEncoding)
				body = compressed
			}
		}
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error("Unable to write response body. ", err)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error("Unable to marshal response. ", err)
		status = http.StatusInternalServerError
		body = []byte(`{"detail":"unable to encode response"}`)
	}
	writeBody(w, r, status, "application/json", body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, r, gateway.StatusCode(err), errorResponse{Detail: err.Error()})
}
