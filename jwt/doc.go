// Package jwt issues, verifies and renews the signed bearer tokens that carry a
// user's identity between requests.
//
// A token is valid until exp; once the remaining validity drops below the
// renewal threshold the request layer asks the Manager for a replacement.
package jwt
