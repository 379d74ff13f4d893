// Package shortblob is a content-addressed blob store fronted by HTTP, most
// often used as a URL shortener.
//
// Content is identified by a truncated hex digest of its bytes. Stored
// content is kept in memory and, unless disabled, in a persistent tier laid
// out as a sharded directory tree (or an equivalent object key space on S3,
// GCS, Redis or SQL).
//
// # Quick Start
//
//	svc, err := shortblob.Open(ctx, shortblob.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//	http.ListenAndServe(":8080", svc.Handler())
//
// Shorten and resolve over HTTP:
//
//	$ curl -d 'https://example.com/' http://localhost:8080/
//	http://localhost:8080/0f115
//	$ curl -I http://localhost:8080/0f115
//	HTTP/1.1 302 Found
//	Location: https://example.com/
//
// # Storage Layout
//
// With sha256 and length 5, the identifier 0f115 is stored at
//
//	goto_state/sha256/l5/0f/11/0f115
//
// Lengths of 2 or less store the file directly under the length directory.
//
// # Programmatic Use
//
// [Service.Store] exposes the store for direct Insert and Lookup calls.
// Use [WithBackend] to supply a custom persistent tier.
package shortblob
