package httpproxy

import (
	"bufio"
	"fmt"
)

// writeStatus writes a minimal status-line response with
// Content-Length: 0 and Connection: close, plus any extra header lines
// supplied verbatim (already "Name: value" with no trailing CRLF).
func writeStatus(bw *bufio.Writer, code int, reason string, extraHeaders ...string) error {
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", code, reason); err != nil {
		return err
	}
	for _, h := range extraHeaders {
		if _, err := fmt.Fprintf(bw, "%s\r\n", h); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("Content-Length: 0\r\nConnection: close\r\n\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}

func writeBadRequest(bw *bufio.Writer) error {
	return writeStatus(bw, 400, "Bad Request")
}

func writeProxyAuthRequired(bw *bufio.Writer) error {
	return writeStatus(bw, 407, "Proxy Authentication Required", `Proxy-Authenticate: Basic realm="socks-hub"`)
}

func writeBadGateway(bw *bufio.Writer) error {
	return writeStatus(bw, 502, "Bad Gateway")
}

func writeConnectionEstablished(bw *bufio.Writer) error {
	if _, err := bw.WriteString("HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}
