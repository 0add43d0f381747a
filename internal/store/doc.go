// Package store holds the persistent UserProvider implementations used by
// the server binary: sqlite for single-node deployments and postgres for
// shared ones. Both satisfy shelfauth.UserProvider.
package store
