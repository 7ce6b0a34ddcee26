// Package redis keeps the cached wallet connector in Redis so that several
// gateway replicas, or a restarted one, restore the same session.
package redis
