// Package easy is a handle-based transfer library.
//
// A Handle is configured one option at a time through the generic SetOpt
// entry point and then performed:
//
//	h := easy.Init()
//	defer h.Cleanup()
//	easy.SetOpt(h, easy.OptURL, "https://example.com")
//	easy.SetOpt(h, easy.OptWriteData, os.Stdout)
//	if code := h.Perform(ctx); code != easy.OK {
//		log.Fatal(easy.Strerror(code))
//	}
//
// Options, status codes and callback conventions mirror libcurl's easy
// interface: http(s), smtp(s), file and magnet URLs are supported.
package easy
