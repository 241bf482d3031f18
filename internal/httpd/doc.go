// Package httpd serves a directory over minimal HTTP/1.x, one job per connection.
//
// Server.Serve accepts connections and submits each one to a worker pool as
// a single job. The job runs Handler.ServeConn, which reads one request,
// writes one response and closes the connection:
//
//	GET /            index page of the site root
//	GET /dir/        index page of that directory
//	GET /file.txt    file bytes with Content-Length and Content-Type
//	anything missing 404 page
//
// Only GET is served. Malformed request lines get 400. Responses are
// gzip-compressed when enabled and the client sends Accept-Encoding: gzip.
package httpd
