package http

import "strings"

const signatureParam = "signature="

// redactSignature masks the signature value so request URLs can be logged.
func redactSignature(url string) string {
	idx := strings.Index(url, signatureParam)
	if idx < 0 {
		return url
	}
	start := idx + len(signatureParam)
	end := strings.IndexByte(url[start:], '&')
	if end < 0 {
		return url[:start] + "***"
	}
	return url[:start] + "***" + url[start+end:]
}
