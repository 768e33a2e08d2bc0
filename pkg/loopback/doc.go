// Package loopback runs the browser OAuth flow for hosts without an app URL
// scheme, such as desktop tools and CLIs.
//
// Session implements auth.BrowserSession. While a flow is open it listens on
// a local address, opens the authorization URL in the system browser and
// serves a small page at the callback path that forwards the URL fragment
// back to the listener. The resulting URL is parsed like any deep link.
package loopback
