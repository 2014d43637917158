// Package player drives mpv. It is the only package that spawns a
// subprocess.
package player

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/util"
)

// Status is the coarse outcome of one playback session.
type Status int

const (
	// StatusOK covers a normal end of file and a deliberate user quit.
	StatusOK Status = iota
	// StatusAborted means the player was shut down before completion.
	StatusAborted
	// StatusError covers process failures and unplayable URLs.
	StatusError
)

// Options tune the mpv invocation.
type Options struct {
	Speed         float64
	ReadaheadSecs int
	WindowTitle   string
}

// Play launches mpv on the stream and blocks until it exits. In debug mode
// no subprocess is spawned; the stream URL is echoed instead.
func Play(ctx context.Context, stream *models.VideoStream, opts Options) Status {
	if stream == nil || stream.URL == "" {
		return StatusError
	}
	if opts.ReadaheadSecs < 30 {
		opts.ReadaheadSecs = 30
	}
	if opts.Speed <= 0 {
		opts.Speed = 1.0
	}

	args := []string{
		"--fs",
		"--cursor-autohide=1000",
		"--cache=yes",
		fmt.Sprintf("--cache-secs=%d", opts.ReadaheadSecs),
		fmt.Sprintf("--demuxer-readahead-secs=%d", opts.ReadaheadSecs),
		fmt.Sprintf("--speed=%.2f", opts.Speed),
		"--ytdl-format=bestvideo[height<=1080]+bestaudio/best",
	}
	if opts.WindowTitle != "" {
		args = append(args, "--force-media-title="+opts.WindowTitle)
	}
	if len(stream.Headers) > 0 {
		fields := make([]string, 0, len(stream.Headers))
		for k, v := range stream.Headers {
			fields = append(fields, k+": "+v)
		}
		args = append(args, "--http-header-fields="+strings.Join(fields, ","))
	}
	args = append(args, stream.URL)

	if util.IsDebug {
		util.Debugf("debug mode, skipping mpv: %s", stream.URL)
		return StatusOK
	}

	cmd := exec.CommandContext(ctx, "mpv", args...)
	if err := cmd.Start(); err != nil {
		util.Error("Failed to launch mpv, is it installed?", "error", err)
		return StatusError
	}

	err := cmd.Wait()
	if ctx.Err() != nil {
		return StatusAborted
	}
	if err == nil {
		return StatusOK
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		// mpv exits 4 on quit-by-signal, which we treat as an abort.
		if exitErr.ExitCode() == 4 || exitErr.ExitCode() == -1 {
			return StatusAborted
		}
	}
	util.Debugf("mpv exited with error: %v", err)
	return StatusError
}
