package dyncors

import (
	"net/http"

	"github.com/jub0bs/dyncors/internal/headers"
)

// compose returns the CORS response headers warranted by d, icfg, and the
// request headers reqHdrs. The result is freshly allocated and owned by the
// caller. If d denies the request, the result is empty.
//
// The order of the steps below matters: no step overrides the
// Access-Control-Allow-Origin value set by the first one.
func (icfg *internalConfig) compose(d Decision, reqHdrs http.Header) http.Header {
	origin, allowed := d.Origin()
	if !allowed {
		return http.Header{}
	}
	// Populating a small (8 keys or fewer) local map incurs 0 heap
	// allocations on average; see https://go.dev/play/p/RQdNE-pPCQq.
	hdrs := make(http.Header, 6)
	hdrs[headers.ACAO] = []string{origin}
	if icfg.aceh != "" {
		hdrs[headers.ACEH] = []string{icfg.aceh}
	}
	if icfg.acma != "" {
		hdrs[icfg.acmaName] = []string{icfg.acma}
	}
	if icfg.credentialed {
		hdrs[headers.ACAC] = []string{headers.ValueTrue}
	}
	hdrs[headers.ACAM] = []string{icfg.acam}
	acah := icfg.acah
	if icfg.reflectACRH {
		acah = headers.Combine(reqHdrs, headers.ACRH)
	}
	if acah != "" {
		hdrs[headers.ACAH] = []string{acah}
	}
	return hdrs
}
