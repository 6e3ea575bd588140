/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelInfo
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: logDate,
		NoColor:    cfg.noColor,
	}))
}

// drainErrors logs write failures reported by handlers until ctx is done.
func drainErrors(ctx context.Context, cfg *Config, errs <-chan error) {
	for {
		select {
		case err := <-errs:
			cfg.log.Error("SERVE: Write failed", tint.Err(err))
		case <-ctx.Done():
			return
		}
	}
}

func reportError(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}

func newPage(cfg *Config, title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon(cfg))
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"%s/\">%s</a></body></html>", cfg.prefix, html.EscapeString(body)))

	return htmlBody.String()
}
