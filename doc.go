/*
Package dyncors provides [net/http] middleware that evaluates a
[Cross-Origin Resource Sharing (CORS)] policy for each request.

Unlike a static CORS configuration, the policy's origin component may be
resolved per request, possibly asynchronously (see [DynamicOrigin]):
the middleware then waits for the resolver's [Decision], honoring the
request's context, before composing the CORS response headers.

For each request, the middleware acts entirely before the wrapped handler
runs. It first writes the CORS response headers warranted by the policy;
then, if the request is a [CORS-preflight request] (i.e. its method is
OPTIONS), it responds with 204 No Content on its own and does not invoke
the wrapped handler. Other requests proceed to the wrapped handler, unless
their origin is denied and [Config.DenyStatus] is set.

This package performs only little configuration validation; most mistakes
are tolerated and replaced by sensible defaults, and reported to the
[Config.Logger]. Care is therefore required for the middleware to work as
intended:

  - Because [CORS-preflight request]s use [OPTIONS] as their method,
    you SHOULD NOT prevent OPTIONS requests from reaching the middleware.
  - Because preflight requests are not authenticated, authentication
    SHOULD NOT take place "ahead of" the middleware.
    However, the middleware MAY wrap an authentication middleware.
  - By default, the middleware does not set the [Vary] header. If responses
    whose CORS response headers depend on the request (reflected origins,
    dynamic origins, reflected request headers) may get cached by shared
    caches, you MUST either set [Config.Vary] or set an appropriate Vary
    header yourself.
  - Browsers reject credentialed responses that allow all origins;
    the middleware does not correct such policies.
  - Multiple CORS middleware MUST NOT be stacked.

[CORS-preflight request]: https://developer.mozilla.org/en-US/docs/Glossary/Preflight_request
[Cross-Origin Resource Sharing (CORS)]: https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS
[OPTIONS]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Methods/OPTIONS
[Vary]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Vary
*/
package dyncors
