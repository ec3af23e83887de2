// Package fileserver is a minimal file-transfer broker for tool-calling
// agents (MCP servers) that need to hand files to, and receive files from,
// a remote client with no shared filesystem.
//
// Callers register a local path or an upload intent and get back a URL plus
// a ready-to-run curl command, without caring which backend is active:
//
//	srv, err := fileserver.Get(ctx, nil) // backend resolved from environment
//	if err != nil { ... }
//
//	dl, err := srv.RegisterDownload(ctx, "/tmp/plot.png", "plot.png")
//	// hand dl.URL (or dl.Curl) to the remote client out-of-band
//
//	up, err := srv.RegisterUpload(ctx, fileserver.UploadOptions{Filename: "data.csv"})
//	// the client PUTs the payload to up.UploadURL, then:
//	data, err := srv.ConsumeUpload(ctx, up.Token)
//
// Two backends exist behind the same interface: a localhost HTTP listener,
// and an S3-compatible object store that issues signed URLs (MinIO, AWS S3,
// or GCS through its S3 interoperability endpoint).
//
// Access control is possession of an unguessable token with a bounded
// lifetime; there is no authentication, TLS termination, or multi-tenant
// isolation. Uploads are consumed exactly once.
package fileserver
