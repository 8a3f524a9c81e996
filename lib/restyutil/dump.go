// Package restyutil writes full HTTP transcripts of a resty client for debugging
// platform responses.
package restyutil

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// Dump writes a transcript of every response the client receives to output. A nil
// output leaves the client untouched. Credential headers are redacted.
func Dump(client *resty.Client, output Output) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&idcounter, 1)
		output.Write(
			fmt.Sprintf("%04d-%s.txt", id, strings.ToLower(res.Request.Method)),
			formatHttpMessage(res),
		)
		return nil
	})
}
