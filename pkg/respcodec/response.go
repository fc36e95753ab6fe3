// Package respcodec serializes HTTP responses for cache storage.
// The stored format is the HTTP/1.1 wire representation of the response,
// which keeps stored entries inspectable with standard tooling.
package respcodec

import (
	"bufio"
	"bytes"
	"net/http"
)

// Encode converts a response to its storable byte form.
// The response body is consumed in the process, but it is replaced with
// an independent copy so the caller can still send the response onward.
// The stored bytes and the restored body are separate snapshots.
func Encode(res *http.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	bts := buf.Bytes()
	clone, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(bts)), res.Request)
	if err != nil {
		return nil, err
	}
	res.Body = clone.Body
	res.ContentLength = clone.ContentLength
	res.TransferEncoding = clone.TransferEncoding
	return bts, nil
}

// Decode converts stored bytes back to a response.
// The returned response owns its body reader.
func Decode(b []byte) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
}
