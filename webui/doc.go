// Package webui serves the interactive matchmaking form.
package webui
