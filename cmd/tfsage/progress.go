package main

import (
	"fmt"
	"io"
	"time"
)

// progressPrinter reports batch progress at most once per second.
type progressPrinter struct {
	w         io.Writer
	start     time.Time
	lastPrint time.Time
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, start: time.Now()}
}

func (pp *progressPrinter) Update(done, total int) {
	if done < total && time.Since(pp.lastPrint) < time.Second {
		return
	}
	pct := float64(done) / float64(total) * 100
	fmt.Fprintf(pp.w, "\r    Progress: %d / %d (%.1f%%) %s  ",
		done, total, pct, time.Since(pp.start).Round(time.Second))
	if done == total {
		fmt.Fprintln(pp.w)
	}
	pp.lastPrint = time.Now()
}
