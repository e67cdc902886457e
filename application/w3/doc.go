// Package w3 is a blocking and an asynchronous HTTP(S)/FTP client built on
// an inet.Stack. A client owns one connection, at most one outstanding
// request, a cookie jar and a list of form fields.
//
// A typical exchange:
//
//	c, _ := w3.New(stack, logger, clock.New(), w3.DefaultOptions())
//	defer c.Close()
//	if err := c.Connect(ctx, "http://example.com/", "", ""); err != nil { ... }
//	c.AddField("q", w3.Str("golang"))
//	if err := c.Issue(ctx, "/search", w3.MethodPostURLEncoded, ""); err != nil { ... }
//	status := c.StatusCode()
package w3
