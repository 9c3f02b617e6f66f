// Package state provides the per-user session store for Telegram bots.
// Sessions live for the process lifetime; every read-modify-write of a user's
// session runs under that user's lock so concurrent updates serialize.
package state
