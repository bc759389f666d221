// Package memory recycles hot-path objects between engine commands.
package memory
