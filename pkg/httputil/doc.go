// Package httputil provides the HTTP plumbing used to fetch remote images.
//
// # Overview
//
//   - [Client]: GET requests with default headers, status classification,
//     automatic retry and optional response caching
//   - [Retry]: retry with exponential backoff for transient failures
//
// # Retry
//
// [Retry] only retries errors wrapped in [RetryableError]. The client wraps
// connection failures and 5xx responses; a 404 becomes a NOT_FOUND error and
// is returned immediately:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    body, err = fetch()
//	    return err
//	})
//
// # Caching
//
// When constructed with a [cache.Cache], [Client.Fetch] stores response bodies
// under [cache.Keyer.HTTPKey] with [cache.TTLHTTP]. Cache failures are ignored.
package httputil
