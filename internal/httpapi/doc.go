// Package httpapi maps the shelfauth engine onto the /user HTTP routes used
// by the catalog frontend.
//
// Every route runs behind request logging, and the /user routes behind
// middleware.Authenticate, so a renewed token is returned on any of them.
// Responses use a {code, message, data} envelope.
package httpapi
